package logger

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"
)

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM sessions":                 "SELECT",
		"  insert into sessions values (1)":       "INSERT",
		"WITH cte AS (SELECT 1) UPDATE sessions":  "UPDATE",
		"DELETE FROM sessions WHERE id = 1":       "DELETE",
		"":                                         "UNKNOWN",
		"VACUUM":                                   "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Errorf("operationFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestGormLogger_LogModeReturnsCopyWithNewLevel(t *testing.T) {
	base := NewGormLogger(GormLoggerConfig{Level: gormlogger.Warn})
	leveled := base.LogMode(gormlogger.Info).(*GormLogger)

	if leveled.level != gormlogger.Info {
		t.Fatalf("expected level Info, got %v", leveled.level)
	}
	if base.level != gormlogger.Warn {
		t.Fatalf("LogMode mutated the receiver's level")
	}
}
