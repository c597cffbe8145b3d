//go:build linux

package motorgate

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// openLine requests chip/offset as an output, initially inactive. activeLow
// inverts the physical level.
func openLine(chip string, offset int, activeLow bool) (output, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer("flightcore-motorgate"))
	if err != nil {
		return nil, fmt.Errorf("motorgate: open %s: %w", chip, err)
	}
	g := &gpiodLine{chip: c, activeLow: activeLow}
	line, err := c.RequestLine(offset, gpiocdev.AsOutput(g.level(false)))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("motorgate: request %s line %d: %w", chip, offset, err)
	}
	g.line = line
	return g, nil
}

type gpiodLine struct {
	chip      *gpiocdev.Chip
	line      *gpiocdev.Line
	activeLow bool
}

func (g *gpiodLine) level(on bool) int {
	if on != g.activeLow {
		return 1
	}
	return 0
}

func (g *gpiodLine) Set(on bool) error {
	if g.line == nil {
		return fmt.Errorf("motorgate: line closed")
	}
	return g.line.SetValue(g.level(on))
}

func (g *gpiodLine) Close() error {
	if g.line == nil {
		return nil
	}
	_ = g.line.SetValue(g.level(false))
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
