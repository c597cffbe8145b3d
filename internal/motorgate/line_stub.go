//go:build !linux

package motorgate

import "fmt"

func openLine(chip string, offset int, activeLow bool) (output, error) {
	return nil, fmt.Errorf("motorgate: gpio unsupported on this platform")
}
