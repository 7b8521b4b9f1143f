//go:build tinygo && !nodebug

// Package display provides SSD1306 OLED display support for debug output.
// It shows maintenance link activity with incoming frames on the yellow
// rows (0-1), outgoing responses on the blue rows (2-3) and a status line
// at the bottom.
//
// Panel refreshes stall the scan loop for several milliseconds, so release
// builds leave the display out:
//
//	tinygo build -tags=nodebug -target=pico -o firmware.uf2 .
package display

import (
	"image/color"
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	// I2C1 is dedicated to the panel; I2C0 is the display bus target.
	i2cAddress = 0x3C
	sclPin     = machine.GP3
	sdaPin     = machine.GP2

	screenWidth  = 128
	screenHeight = 64

	// proggy TinySZ 8pt: 6px advance, 10px line pitch
	lineHeight = 10
	baseline   = 7
	rows       = screenHeight / lineHeight // 6 rows

	rowInBytes   = 0 // Yellow - incoming raw bytes
	rowInParsed  = 1 // Yellow - incoming parsed
	rowOutBytes  = 2 // Blue - outgoing raw bytes
	rowOutParsed = 3 // Blue - outgoing parsed
	rowStatus    = 5 // Blue - board status
)

var font = &proggy.TinySZ8pt7b

// Colors for monochrome display
var (
	black = color.RGBA{0, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 255}
)

// Manager handles the SSD1306 display for debug output.
type Manager struct {
	device *ssd1306.Device
}

// NewManager creates and initializes the display manager.
// Returns nil if display initialization fails (non-fatal for debug).
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	i2c := machine.I2C1
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: 400000,
		SCL:       sclPin,
		SDA:       sdaPin,
	}); err != nil {
		log.Warn("debug panel unavailable", "err", err)
		return nil
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address: i2cAddress,
		Width:   screenWidth,
		Height:  screenHeight,
	})
	dev.ClearDisplay()

	mgr := &Manager{
		device: dev,
	}

	mgr.drawLine(rowInBytes, "Megaplexer Debug")
	mgr.drawLine(rowInParsed, "Waiting for data...")
	mgr.refresh()

	return mgr
}

// ShowIncomingFrame displays an incoming frame on the yellow rows.
func (m *Manager) ShowIncomingFrame(bytesStr, parsedStr string) {
	m.clearRow(rowInBytes)
	m.clearRow(rowInParsed)
	m.drawLine(rowInBytes, truncate("I:"+bytesStr, cols))
	m.drawLine(rowInParsed, truncate(" "+parsedStr, cols))
	m.refresh()
}

// ShowOutgoingResponse displays an outgoing response on the blue rows.
func (m *Manager) ShowOutgoingResponse(bytesStr, parsedStr string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawLine(rowOutBytes, truncate("O:"+bytesStr, cols))
	m.drawLine(rowOutParsed, truncate(" "+parsedStr, cols))
	m.refresh()
}

// ShowError displays an error message on the display.
func (m *Manager) ShowError(msg string) {
	m.clearRow(rowOutBytes)
	m.clearRow(rowOutParsed)
	m.drawLine(rowOutBytes, "ERR:")
	m.drawLine(rowOutParsed, truncate(msg, cols))
	m.refresh()
}

// ShowStatus replaces the bottom status line.
func (m *Manager) ShowStatus(status string) {
	m.clearRow(rowStatus)
	m.drawLine(rowStatus, truncate(status, cols))
	m.refresh()
}

// clearRow blanks one text row in the frame buffer.
func (m *Manager) clearRow(row int) {
	if row < 0 || row >= rows {
		return
	}
	yStart := int16(row * lineHeight)
	for y := yStart; y < yStart+lineHeight; y++ {
		for x := int16(0); x < screenWidth; x++ {
			m.device.SetPixel(x, y, black)
		}
	}
}

// drawLine writes s at the start of the given row.
func (m *Manager) drawLine(row int, s string) {
	if row < 0 || row >= rows {
		return
	}
	y := int16(row*lineHeight + baseline)
	tinyfont.WriteLine(m.device, font, 0, y, s, white)
}

// refresh pushes the frame buffer to the panel.
func (m *Manager) refresh() {
	m.device.Display()
}
