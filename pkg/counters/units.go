package counters

import (
	"fmt"
	"time"

	"colmet/pkg/utils"
)

// DisplayUnit controls human formatting only. It carries no wire semantics.
type DisplayUnit string

const (
	Bytes       DisplayUnit = "bytes"
	KBytes      DisplayUnit = "kbytes"
	MBytes      DisplayUnit = "mbytes"
	Seconds     DisplayUnit = "sec"
	Micros      DisplayUnit = "usec"
	Nanos       DisplayUnit = "nsec"
	Count       DisplayUnit = "count"
	Temperature DisplayUnit = "celsius"
	Ratio       DisplayUnit = "ratio"
	Raw         DisplayUnit = "raw"
	Date        DisplayUnit = "ts_date"
	MBytesMicro DisplayUnit = "mbytes-usec"
	Label       DisplayUnit = "string"
)

var (
	byteExts  = []string{"", "K", "M", "G", "T", "P"}
	countExts = []string{"", "K", "M", "G", "T"}
)

// Format renders v for display. nil renders as "n/a".
func (u DisplayUnit) Format(v any) string {
	if v == nil {
		return "n/a"
	}
	if s, ok := v.(string); ok {
		return s
	}
	f, ok := utils.ToFloat64Ok(v)
	if !ok {
		return utils.ToString(v)
	}

	switch u {
	case Bytes:
		return normalize(f, 1024, 10000, byteExts) + " (bytes)"
	case KBytes:
		return normalize(f, 1024, 10000, byteExts[1:]) + " (bytes)"
	case MBytes:
		return normalize(f, 1024, 10000, byteExts[2:]) + " (bytes)"
	case Seconds:
		return utils.FormatValue(v) + " (seconds)"
	case Micros:
		return normalize(f, 1000, 1000, []string{"u", "m", ""}) + " (seconds)"
	case Nanos:
		return normalize(f, 1000, 1000, []string{"n", "u", "m", ""}) + " (seconds)"
	case Count:
		return normalize(f, 1000, 10000, countExts) + " (count)"
	case Temperature:
		return fmt.Sprintf("%.1f °C", f)
	case Ratio:
		return fmt.Sprintf("%.1f%%", f*100)
	case Date:
		return time.Unix(int64(f), 0).Format("02/01/2006 - 15:04:05")
	case MBytesMicro:
		return normalize(f*1024*1024/1e6, 1024, 10000, byteExts) + " (bytes*seconds)"
	default:
		return utils.FormatValue(v)
	}
}

// normalize divides val by factor while it exceeds limit and a larger
// extension is available.
func normalize(val, factor, limit float64, exts []string) string {
	exp := 0
	for val > limit && exp < len(exts)-1 {
		val /= factor
		exp++
	}
	return fmt.Sprintf("%.0f%s", val, exts[exp])
}
