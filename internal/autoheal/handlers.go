package autoheal

import (
	"runtime"
	"strconv"

	"github.com/tsanders-rh/sentinel/pkg/types"
)

const mb = 1024 * 1024

// healMemory triggers a collection and reports heap usage. It never restarts
// the process; above MemoryCriticalPercent it only recommends a restart.
func (e *Engine) healMemory(data map[string]interface{}) Result {
	before := readMemStats()
	runtime.GC()
	after := readMemStats()

	details := types.Metadata{
		"heap_alloc_mb_before": before.HeapAlloc / mb,
		"heap_alloc_mb":        after.HeapAlloc / mb,
		"heap_sys_mb":          after.HeapSys / mb,
		"num_gc":               after.NumGC,
	}

	e.logger.Info("memory heal: collection triggered",
		"heap_alloc_mb", after.HeapAlloc/mb, "heap_sys_mb", after.HeapSys/mb)

	if pct, ok := floatValue(data, "usage_percent"); ok && pct > MemoryCriticalPercent {
		e.logger.Error("memory heal: usage critical, restart recommended", "usage_percent", pct)
		details["recommendation"] = "restart"
	}

	return Result{Success: true, Action: "gc_triggered", Details: details}
}

// healDatabase only observes. The pool reconnects on its own.
func (e *Engine) healDatabase(data map[string]interface{}) Result {
	e.logger.Warn("database heal: observing, pool reconnects automatically", "data", data)
	return Result{Success: true, Action: "monitor_only"}
}

// healAPIs checks that every required credential is set
func (e *Engine) healAPIs(_ map[string]interface{}) Result {
	var missing []string
	for _, key := range RequiredCredentials {
		if v, ok := e.lookupEnv(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		e.logger.Error("api heal: missing credentials", "missing", missing)
		return Result{Success: false, Action: "config_check", Missing: missing}
	}
	return Result{Success: true, Action: "apis_ok"}
}

// handleCostOverrun enters degraded mode and reports the restrictions downstream
// consumers are expected to apply
func (e *Engine) handleCostOverrun(data map[string]interface{}) Result {
	e.enterDegradedMode()
	e.logger.Error("cost overrun: degraded mode active", "data", data)

	return Result{
		Success:      true,
		Action:       "degraded_mode",
		Restrictions: append([]string(nil), DegradedRestrictions...),
	}
}

func floatValue(data map[string]interface{}, key string) (float64, bool) {
	raw, ok := data[key]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
