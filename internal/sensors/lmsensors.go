package sensors

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/thermalctl/internal/command"
	"codeberg.org/mutker/thermalctl/internal/errors"
)

const (
	lmSensorsTool    = "sensors"
	lmSensorsTimeout = 5 * time.Second
)

// "  temp1_input: 45.000"
var lmValueLine = regexp.MustCompile(`^\s+([a-z]+)\d+_(input|average):\s*(-?[0-9.]+)\s*$`)

var lmUnits = map[string]struct {
	kind Kind
	unit string
}{
	"temp":   {KindTemperature, UnitCelsius},
	"fan":    {KindFan, UnitRPM},
	"in":     {KindVoltage, UnitVolt},
	"power":  {KindPower, UnitWatt},
	"curr":   {KindCurrent, UnitAmpere},
	"energy": {KindEnergy, UnitJoule},
}

type lmSensorsBackend struct {
	runner  command.Runner
	timeout time.Duration
}

func NewLMSensorsBackend(runner command.Runner) Backend {
	return &lmSensorsBackend{runner: runner, timeout: lmSensorsTimeout}
}

func (*lmSensorsBackend) Name() string {
	return "lm-sensors"
}

func (b *lmSensorsBackend) Read(ctx context.Context) ([]Reading, error) {
	out, err := b.runner.Run(ctx, b.timeout, lmSensorsTool, "-A", "-u")
	if err != nil {
		return nil, errors.New().Wrap(ErrBackendUnavailable, err)
	}

	return ParseLMSensors(out)
}

// ParseLMSensors parses the raw output of `sensors -A -u`. Only input and
// average values are kept, already in base units.
func ParseLMSensors(out []byte) ([]Reading, error) {
	var (
		readings []Reading
		chip     string
		label    string
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			chip, label = "", ""
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		switch {
		case !indented && !strings.HasSuffix(line, ":"):
			// chip header, e.g. "coretemp-isa-0000"
			chip = line
			if i := strings.IndexByte(line, '-'); i > 0 {
				chip = line[:i]
			}
			label = ""
		case !indented:
			label = strings.TrimSuffix(line, ":")
		default:
			m := lmValueLine.FindStringSubmatch(line)
			if m == nil || chip == "" {
				continue
			}
			u, ok := lmUnits[m[1]]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(m[3], 64)
			if err != nil {
				continue
			}
			readings = append(readings, Reading{
				Kind:   u.kind,
				Value:  v,
				Unit:   u.unit,
				Chip:   chip,
				Label:  label,
				Source: "lm-sensors",
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return readings, errors.New().Wrap(ErrParse, err)
	}

	return readings, nil
}
