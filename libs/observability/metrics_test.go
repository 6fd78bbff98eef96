package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"testing"
	"time"
)

func captureLog(fn func()) map[string]interface{} {
	old := logger
	defer func() { logger = old }()

	var buf bytes.Buffer
	logger = log.New(&buf, "", 0)

	fn()

	var result map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return nil
	}
	return result
}

func TestRecordIngestion_Success(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{
		RunID:  "run_123",
		Symbol: "SPY",
	})

	result := captureLog(func() {
		RecordIngestion(ctx, "SPY", 25*time.Millisecond, nil)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "ingestion_update" {
		t.Errorf("expected name=ingestion_update, got %v", result["name"])
	}
	if result["symbol"] != "SPY" {
		t.Errorf("expected symbol=SPY, got %v", result["symbol"])
	}
	if result["success"] != true {
		t.Errorf("expected success=true, got %v", result["success"])
	}
	latency := result["latency_ms"].(float64)
	if latency < 24 || latency > 26 {
		t.Errorf("expected latency_ms ~25, got %v", latency)
	}
}

func TestRecordIngestion_Failure(t *testing.T) {
	ctx := context.Background()

	result := captureLog(func() {
		RecordIngestion(ctx, "SPY", 10*time.Millisecond, io.EOF)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
	if result["error"] != "EOF" {
		t.Errorf("expected error=EOF, got %v", result["error"])
	}
}

func TestRecordGreeksMismatch(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{Symbol: "QQQ"})

	result := captureLog(func() {
		RecordGreeksMismatch(ctx, "QQQ", "delta", 0.42, 0.30)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "greeks_mismatch" {
		t.Errorf("expected name=greeks_mismatch, got %v", result["name"])
	}
	if result["field"] != "delta" {
		t.Errorf("expected field=delta, got %v", result["field"])
	}
	if result["vendor"] != 0.42 {
		t.Errorf("expected vendor=0.42, got %v", result["vendor"])
	}
}

func TestRecordFlowFlush(t *testing.T) {
	ctx := context.Background()

	result := captureLog(func() {
		RecordFlowFlush(ctx, 12, 8*time.Millisecond, nil)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "flow_flush" {
		t.Errorf("expected name=flow_flush, got %v", result["name"])
	}
	if result["buckets"] != float64(12) {
		t.Errorf("expected buckets=12, got %v", result["buckets"])
	}
}

func TestRecordGEXCompute(t *testing.T) {
	ctx := WithRunInfo(context.Background(), RunInfo{Symbol: "SPY"})

	result := captureLog(func() {
		RecordGEXCompute(ctx, "SPY", "2026-08-21", 40*time.Millisecond, nil)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["name"] != "gex_compute" {
		t.Errorf("expected name=gex_compute, got %v", result["name"])
	}
	if result["expiration"] != "2026-08-21" {
		t.Errorf("expected expiration=2026-08-21, got %v", result["expiration"])
	}
}

func TestRecordStreamReconnect(t *testing.T) {
	ctx := context.Background()

	result := captureLog(func() {
		RecordStreamReconnect(ctx, "SPY", 3, io.EOF)
	})

	if result == nil {
		t.Fatal("expected JSON log output")
	}
	if result["attempt"] != float64(3) {
		t.Errorf("expected attempt=3, got %v", result["attempt"])
	}
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
}

func TestMain(m *testing.M) {
	if os.Getenv("VERBOSE") != "1" {
		logger = log.New(io.Discard, "", 0)
	}
	os.Exit(m.Run())
}
