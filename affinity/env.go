package affinity

import "os"

// MonitoredEnvVars are the threading-runtime variables through which a user
// takes control of thread placement. If any of them is present, automatic
// binding is disabled; the value is never inspected.
var MonitoredEnvVars = []string{
	"OMP_CANCELLATION", "OMP_DISPLAY_ENV", "OMP_DEFAULT_DEVICE", "OMP_DYNAMIC",
	"OMP_MAX_ACTIVE_LEVELS", "OMP_MAX_TASK_PRIORITY", "OMP_NESTED",
	"OMP_NUM_THREADS", "OMP_PROC_BIND", "OMP_PLACES", "OMP_STACKSIZE",
	"OMP_SCHEDULE", "OMP_THREAD_LIMIT", "OMP_WAIT_POLICY", "GOMP_CPU_AFFINITY",
	"GOMP_DEBUG", "GOMP_STACKSIZE", "GOMP_SPINCOUNT", "GOMP_RTEMS_THREAD_POOLS",
	"KMP_AFFINITY", "KMP_NUM_THREADS", "MIC_KMP_AFFINITY",
	"MIC_OMP_NUM_THREADS", "MIC_OMP_PROC_BIND", "PHI_KMP_AFFINITY",
	"PHI_OMP_NUM_THREADS", "PHI_KMP_PLACE_THREADS", "MKL_NUM_THREADS",
	"MKL_DYNAMIC", "MKL_DOMAIN_NUM_THREADS",
}

// LookupEnvFunc matches os.LookupEnv.
type LookupEnvFunc func(key string) (string, bool)

// findEnvOverride returns the first monitored variable that is set.
func findEnvOverride(lookup LookupEnvFunc) (string, bool) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range MonitoredEnvVars {
		if _, ok := lookup(name); ok {
			return name, true
		}
	}
	return "", false
}
