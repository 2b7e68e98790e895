package transfer

import (
	"fmt"

	"github.com/ZebulonRouseFrantzich/emuget/internal/units"
)

// progressLine formats a speed and size notification.
func progressLine(speed, completed, total int64) string {
	totalStr := "?"
	if total > 0 {
		totalStr = units.FormatBytes(total)
	}
	return fmt.Sprintf("download speed: %s/s, %s/%s", units.FormatBytes(speed), units.FormatBytes(completed), totalStr)
}
