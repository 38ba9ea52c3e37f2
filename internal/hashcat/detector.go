package hashcat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat/types"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

const detectTimeout = 30 * time.Second

var (
	backendRe     = regexp.MustCompile(`^(HIP|OpenCL|CUDA|Metal) Info:`)
	platformRe    = regexp.MustCompile(`^\s*(OpenCL|CUDA|HIP|Metal) Platform ID #\d+`)
	deviceIDRe    = regexp.MustCompile(`^\s*Backend Device ID #(\d+)(?:\s+\(Alias:\s+#(\d+)\))?`)
	nameRe        = regexp.MustCompile(`^\s*Name\.+:\s+(.+)`)
	typeRe        = regexp.MustCompile(`^\s*Type\.+:\s+(.+)`)
	processorsRe  = regexp.MustCompile(`^\s*Processor\(s\)\.+:\s+(\d+)`)
	clockRe       = regexp.MustCompile(`^\s*Clock\.+:\s+(\d+)`)
	memoryTotalRe = regexp.MustCompile(`^\s*Memory\.Total\.+:\s+(\d+)\s+MB`)
	memoryFreeRe  = regexp.MustCompile(`^\s*Memory\.Free\.+:\s+(\d+)\s+MB`)
	pciAddrRe     = regexp.MustCompile(`^\s*PCI\.Addr\.(BDF|BDFe)\.+:\s+(.+)`)

	hashModesHeaderRe = regexp.MustCompile(`^-\s*\[\s*Hash modes\s*\]\s*-`)
	sectionHeaderRe   = regexp.MustCompile(`^-\s*\[\s*.+\s*\]\s*-`)
	hashModeRowRe     = regexp.MustCompile(`^\s*(\d+)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*$`)
)

// HostProbe reports information about the local machine
type HostProbe func(ctx context.Context) (types.HostInfo, error)

// Detector queries hashcat for its device list and hash mode table
type Detector struct {
	binaryPath string
	probe      HostProbe
}

// NewDetector creates a detector that runs binaryPath and enriches results
// with gopsutil host information
func NewDetector(binaryPath string) *Detector {
	return &Detector{binaryPath: binaryPath, probe: ProbeHost}
}

// WithHostProbe replaces the host information source
func (d *Detector) WithHostProbe(probe HostProbe) *Detector {
	d.probe = probe
	return d
}

// Devices runs `hashcat -I` and returns the non-alias devices. CPU entries
// are completed with host information; when hashcat reports nothing usable
// a single host CPU entry is returned instead.
func (d *Detector) Devices(ctx context.Context) ([]types.Device, error) {
	debug.Info("Starting hashcat device detection")

	output, runErr := d.run(ctx, "-I")
	if errors.Is(runErr, ErrToolNotFound) {
		return nil, runErr
	}
	if runErr != nil {
		// hashcat exits non-zero when it only printed warnings
		debug.Warning("hashcat -I returned error (may be just warnings): %v", runErr)
	}
	debug.Debug("Raw hashcat -I output:\n%s", output)

	devices := FilterAliases(ParseDeviceOutput(output))

	host, hostErr := d.probe(ctx)
	if hostErr != nil {
		debug.Warning("Failed to read host information: %v", hostErr)
	}

	if len(devices) == 0 {
		if hostErr != nil {
			if runErr != nil {
				return nil, fmt.Errorf("failed to detect devices: %w", runErr)
			}
			return nil, fmt.Errorf("failed to detect devices: %w", hostErr)
		}
		debug.Info("hashcat reported no devices, falling back to host CPU")
		return []types.Device{hostDevice(host)}, nil
	}

	if hostErr == nil {
		for i := range devices {
			if devices[i].IsCPU() {
				enrichCPU(&devices[i], host)
			}
		}
	}

	debug.Info("Detected %d devices", len(devices))
	return devices, nil
}

// HashTypes runs `hashcat --help` and returns the hash mode table sorted by mode
func (d *Detector) HashTypes(ctx context.Context) ([]types.HashType, error) {
	output, err := d.run(ctx, "--help")
	if errors.Is(err, ErrToolNotFound) {
		return nil, err
	}
	modes := ParseHashModes(output)
	if len(modes) == 0 {
		if err != nil {
			return nil, fmt.Errorf("failed to list hash types: %w", err)
		}
		return nil, fmt.Errorf("failed to list hash types: no hash modes in hashcat output")
	}
	debug.Info("Loaded %d hash types", len(modes))
	return modes, nil
}

func (d *Detector) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binaryPath, args...)
	cmd.WaitDelay = controlWaitDelay
	output, err := cmd.CombinedOutput()
	if err != nil && isNotFound(err) {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, d.binaryPath)
	}
	return string(output), err
}

// ParseDeviceOutput parses the output of hashcat -I. Platform blocks are
// skipped; devices carry the backend of the section they appear in.
func ParseDeviceOutput(output string) []types.Device {
	var devices []types.Device
	var current *types.Device
	var backend string
	inPlatform := false

	flush := func() {
		if current != nil {
			devices = append(devices, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		if m := backendRe.FindStringSubmatch(line); m != nil {
			flush()
			backend = m[1]
			inPlatform = false
			continue
		}
		if platformRe.MatchString(line) {
			flush()
			inPlatform = true
			continue
		}
		if m := deviceIDRe.FindStringSubmatch(line); m != nil {
			flush()
			inPlatform = false
			id, _ := strconv.Atoi(m[1])
			current = &types.Device{ID: id, Backend: backend, Type: "GPU"}
			if m[2] != "" {
				current.AliasOf, _ = strconv.Atoi(m[2])
			}
			continue
		}
		if current == nil || inPlatform {
			continue
		}

		if m := nameRe.FindStringSubmatch(line); m != nil {
			current.Name = strings.TrimSpace(m[1])
		} else if m := typeRe.FindStringSubmatch(line); m != nil {
			current.Type = strings.TrimSpace(m[1])
		} else if m := processorsRe.FindStringSubmatch(line); m != nil {
			current.Processors, _ = strconv.Atoi(m[1])
		} else if m := clockRe.FindStringSubmatch(line); m != nil {
			current.Clock, _ = strconv.Atoi(m[1])
		} else if m := memoryTotalRe.FindStringSubmatch(line); m != nil {
			current.MemoryTotal, _ = strconv.ParseInt(m[1], 10, 64)
		} else if m := memoryFreeRe.FindStringSubmatch(line); m != nil {
			current.MemoryFree, _ = strconv.ParseInt(m[1], 10, 64)
		} else if m := pciAddrRe.FindStringSubmatch(line); m != nil {
			current.PCIAddress = strings.TrimSpace(m[2])
		}
	}
	flush()

	return devices
}

// FilterAliases drops devices that are a second view of a device with a
// lower ID
func FilterAliases(devices []types.Device) []types.Device {
	ids := make(map[int]bool, len(devices))
	for _, d := range devices {
		ids[d.ID] = true
	}

	filtered := make([]types.Device, 0, len(devices))
	for _, d := range devices {
		if d.AliasOf != 0 && d.AliasOf < d.ID && ids[d.AliasOf] {
			debug.Debug("Skipping device #%d (alias of #%d)", d.ID, d.AliasOf)
			continue
		}
		filtered = append(filtered, d)
	}
	return filtered
}

// ParseHashModes extracts the "Hash modes" table from hashcat --help output
func ParseHashModes(output string) []types.HashType {
	var modes []types.HashType
	inTable := false

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if hashModesHeaderRe.MatchString(line) {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if sectionHeaderRe.MatchString(line) {
			break
		}
		m := hashModeRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		mode, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		modes = append(modes, types.HashType{Mode: mode, Name: m[2], Category: m[3]})
	}

	sort.SliceStable(modes, func(i, j int) bool { return modes[i].Mode < modes[j].Mode })
	return modes
}

// ProbeHost reads CPU and memory information through gopsutil
func ProbeHost(ctx context.Context) (types.HostInfo, error) {
	var info types.HostInfo

	stats, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read cpu info: %w", err)
	}
	if len(stats) > 0 {
		info.CPUModel = strings.TrimSpace(stats[0].ModelName)
		info.CPUMhz = stats[0].Mhz
	}

	if info.LogicalCores, err = cpu.CountsWithContext(ctx, true); err != nil {
		return info, fmt.Errorf("failed to count cpus: %w", err)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read memory info: %w", err)
	}
	info.MemoryTotal = int64(vm.Total / (1024 * 1024))
	info.MemoryFree = int64(vm.Available / (1024 * 1024))

	return info, nil
}

func enrichCPU(d *types.Device, host types.HostInfo) {
	if d.Name == "" {
		d.Name = host.CPUModel
	}
	if d.Processors == 0 {
		d.Processors = host.LogicalCores
	}
	if d.Clock == 0 {
		d.Clock = int(host.CPUMhz)
	}
	if d.MemoryTotal == 0 {
		d.MemoryTotal = host.MemoryTotal
	}
	if d.MemoryFree == 0 {
		d.MemoryFree = host.MemoryFree
	}
}

func hostDevice(host types.HostInfo) types.Device {
	d := types.Device{ID: 1, Type: "CPU", Backend: "host"}
	enrichCPU(&d, host)
	return d
}
