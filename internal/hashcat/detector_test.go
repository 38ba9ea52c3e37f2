package hashcat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat/types"
	"github.com/doomedramen/autopwn-sub005/internal/testutil"
)

const sampleDeviceOutput = `hashcat (v6.2.6) starting in backend information mode

OpenCL Info:
============

OpenCL Platform ID #1
  Vendor..: The pocl project
  Name....: Portable Computing Language
  Version.: OpenCL 3.0 PoCL 3.1

  Backend Device ID #1
    Type...........: CPU
    Vendor.ID......: 128
    Vendor.........: GenuineIntel
    Name...........: cpu-haswell-Intel(R) Xeon(R) CPU
    Version........: OpenCL 3.0 PoCL HSTR
    Processor(s)...: 8
    Clock..........: 2400
    Memory.Total...: 15911 MB (limited to 2048 MB allocatable in one block)
    Memory.Free....: 7923 MB
    Local.Memory...: 512 KB

  Backend Device ID #2 (Alias: #1)
    Type...........: CPU
    Name...........: cpu-haswell-Intel(R) Xeon(R) CPU
    Processor(s)...: 8
`

const sampleHelpOutput = `hashcat (v6.2.6) starting in help mode

- [ Options ] -

 Options Short / Long           | Type | Description
=================================+======+======================================
 -m, --hash-type                | Num  | Hash-type, references below

- [ Hash modes ] -

      # | Name                                                       | Category
  ======+============================================================+======================================
    900 | MD4                                                        | Raw Hash
      0 | MD5                                                        | Raw Hash
  22000 | WPA-PBKDF2-PMKID+EAPOL                                     | Network Protocol

- [ Brain Client Features ] -

  # | Features
 ===+========================================================
  1 | Send hashed passwords
`

func fixedHost(ctx context.Context) (types.HostInfo, error) {
	return types.HostInfo{
		CPUModel:     "Test CPU",
		CPUMhz:       3100,
		LogicalCores: 16,
		MemoryTotal:  32000,
		MemoryFree:   20000,
	}, nil
}

func failingHost(ctx context.Context) (types.HostInfo, error) {
	return types.HostInfo{}, errors.New("no host info")
}

func TestParseDeviceOutput(t *testing.T) {
	devices := ParseDeviceOutput(sampleDeviceOutput)
	require.Len(t, devices, 2)

	first := devices[0]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "CPU", first.Type)
	assert.Equal(t, "OpenCL", first.Backend)
	assert.Equal(t, "cpu-haswell-Intel(R) Xeon(R) CPU", first.Name)
	assert.Equal(t, 8, first.Processors)
	assert.Equal(t, 2400, first.Clock)
	assert.Equal(t, int64(15911), first.MemoryTotal)
	assert.Equal(t, int64(7923), first.MemoryFree)

	assert.Equal(t, 1, devices[1].AliasOf)

	filtered := FilterAliases(devices)
	require.Len(t, filtered, 1)
	assert.Equal(t, 1, filtered[0].ID)
}

func TestParseDeviceOutputEmpty(t *testing.T) {
	assert.Empty(t, ParseDeviceOutput("hashcat: no devices found\n"))
}

func TestParseHashModes(t *testing.T) {
	modes := ParseHashModes(sampleHelpOutput)
	assert.Equal(t, []types.HashType{
		{Mode: 0, Name: "MD5", Category: "Raw Hash"},
		{Mode: 900, Name: "MD4", Category: "Raw Hash"},
		{Mode: 22000, Name: "WPA-PBKDF2-PMKID+EAPOL", Category: "Network Protocol"},
	}, modes)
}

func TestDetectorDevices(t *testing.T) {
	out := testutil.WriteFile(t, "devices.txt", sampleDeviceOutput)
	bin := testutil.FakeTool(t, `cat `+out)

	devices, err := NewDetector(bin).WithHostProbe(fixedHost).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	// values reported by hashcat are kept
	assert.Equal(t, "cpu-haswell-Intel(R) Xeon(R) CPU", devices[0].Name)
	assert.Equal(t, 8, devices[0].Processors)
	assert.Equal(t, int64(15911), devices[0].MemoryTotal)
}

func TestDetectorDevicesHostFallback(t *testing.T) {
	bin := testutil.FakeTool(t, `echo "No devices found/left."
exit 255`)

	devices, err := NewDetector(bin).WithHostProbe(fixedHost).Devices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)

	assert.Equal(t, types.Device{
		ID:          1,
		Name:        "Test CPU",
		Type:        "CPU",
		Backend:     "host",
		Processors:  16,
		Clock:       3100,
		MemoryTotal: 32000,
		MemoryFree:  20000,
	}, devices[0])
}

func TestDetectorDevicesNothingAvailable(t *testing.T) {
	bin := testutil.FakeTool(t, `exit 255`)

	_, err := NewDetector(bin).WithHostProbe(failingHost).Devices(context.Background())
	assert.Error(t, err)
}

func TestDetectorMissingBinary(t *testing.T) {
	d := NewDetector(filepath.Join(t.TempDir(), "missing")).WithHostProbe(fixedHost)

	_, err := d.Devices(context.Background())
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = d.HashTypes(context.Background())
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestDetectorHashTypes(t *testing.T) {
	out := testutil.WriteFile(t, "help.txt", sampleHelpOutput)
	bin := testutil.FakeTool(t, `cat `+out)

	modes, err := NewDetector(bin).HashTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, modes, 3)
}

func TestProbeHost(t *testing.T) {
	info, err := ProbeHost(context.Background())
	if err != nil {
		t.Skipf("host information unavailable: %v", err)
	}
	assert.Greater(t, info.LogicalCores, 0)
	assert.Greater(t, info.MemoryTotal, int64(0))
}
