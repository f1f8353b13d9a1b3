package models

import (
	"bytes"
	"encoding/json"
	"testing"

	applog "github.com/huangang/studyhub/pkg/logger"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormWriter_LogsThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	defer applog.Configure("info", "")

	gormWriter{}.Printf("slow query %dms: %s", 812, "SELECT 1")

	var line map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if line["level"] != "warn" || line["component"] != "gorm" {
		t.Errorf("level = %v component = %v", line["level"], line["component"])
	}
	if line["message"] != "slow query 812ms: SELECT 1" {
		t.Errorf("message = %v", line["message"])
	}
}

func TestNewGormLogger_Level(t *testing.T) {
	if newGormLogger("debug") == nil || newGormLogger("release") == nil {
		t.Fatal("newGormLogger() returned nil")
	}
	var _ gormlogger.Writer = gormWriter{}
}
