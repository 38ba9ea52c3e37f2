package hashcat

import "strconv"

// WorkloadCeiling is the highest workload profile the engine will request
const WorkloadCeiling = 2

// BuildArgs returns the hashcat argument list for a job. maxWorkload is
// clamped to [1, WorkloadCeiling]; a job without a workload runs at the cap.
func BuildArgs(spec JobSpec, sessionID string, maxWorkload int) []string {
	ceiling := maxWorkload
	if ceiling < 1 || ceiling > WorkloadCeiling {
		ceiling = WorkloadCeiling
	}
	workload := spec.Workload
	if workload <= 0 || workload > ceiling {
		workload = ceiling
	}

	args := []string{
		"--session", sessionID,
		"-D", "1", // CPU devices only
		"-m", strconv.Itoa(spec.HashType),
		"-a", strconv.Itoa(spec.AttackMode),
		"-w", strconv.Itoa(workload),
	}

	if spec.DisablePotfile {
		args = append(args, "--potfile-disable")
	}
	if spec.DisableHWMon {
		args = append(args, "--hwmon-disable")
	} else if spec.TempAbort > 0 {
		args = append(args, "--hwmon-temp-abort="+strconv.Itoa(spec.TempAbort))
	}
	for _, rule := range spec.Rules {
		args = append(args, "-r", rule)
	}

	args = append(args, spec.HashFile)

	// hashcat reads the mask positionally: before the wordlist in mode 7,
	// after it everywhere else
	if spec.Mask != "" && spec.AttackMode == AttackHybridMask {
		args = append(args, spec.Mask)
		args = append(args, spec.Dictionaries...)
	} else {
		args = append(args, spec.Dictionaries...)
		if spec.Mask != "" {
			args = append(args, spec.Mask)
		}
	}

	return append(args, "--status", "--status-timer=1")
}
