// Package cli defines the dicewire command tree.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dicewire/dicewire/internal/ble"
	"github.com/dicewire/dicewire/internal/config"
	"github.com/dicewire/dicewire/internal/store"
	"github.com/dicewire/dicewire/internal/tui"
	"github.com/dicewire/dicewire/internal/util"
	"github.com/dicewire/dicewire/pixel"
)

// CLI is the root command structure for dicewire.
type CLI struct {
	Verbose     bool          `short:"v" help:"Enable verbose debug output"`
	Die         string        `short:"d" help:"Advertised name of the die to use (default: first die found)"`
	ScanTimeout time.Duration `default:"10s" help:"How long to scan for dice"`

	Scan   ScanCmd   `cmd:"" help:"List dice in range"`
	Status StatusCmd `cmd:"" help:"Show identity, battery, signal and roll state"`
	Blink  BlinkCmd  `cmd:"" help:"Flash the die's LEDs"`
	Anim   AnimCmd   `cmd:"" help:"Animation operations"`
	Rename RenameCmd `cmd:"" help:"Set the die's advertised name"`
	Watch  WatchCmd  `cmd:"" help:"Live view of rolls and die state (TUI)"`
	Store  StoreCmd  `cmd:"" help:"Animation data-set store"`
}

// connect scans for the selected die, connects it and returns a ready
// controller plus a teardown function.
func (g *CLI) connect() (*pixel.Pixel, func(), error) {
	config.Verbose = g.Verbose

	ctx, cancel := context.WithTimeout(context.Background(), g.ScanTimeout)
	defer cancel()

	fmt.Printf("Scanning for dice...\n")
	link, err := ble.FindDie(ctx, g.Die)
	if err != nil {
		return nil, nil, err
	}

	p := pixel.New(link, pixel.WithLogger(config.NewLogger()))
	fmt.Printf("Connecting to %s...\n", link.Name())
	if err := p.Connect(context.Background(), false); err != nil {
		return nil, nil, err
	}
	teardown := func() {
		if err := p.Disconnect(); err != nil {
			config.Debugf("disconnect: %v", err)
		}
	}
	return p, teardown, nil
}

// --- Scan ---

type ScanCmd struct{}

func (c *ScanCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose

	ctx, cancel := context.WithTimeout(context.Background(), globals.ScanTimeout)
	defer cancel()

	fmt.Printf("Scanning for %s...\n\n", globals.ScanTimeout)
	count := 0
	err := ble.Scan(ctx, func(adv ble.Advertisement) {
		count++
		fmt.Printf("  %-24s  %s  rssi %d\n", adv.Name, adv.Address.String(), adv.RSSI)
	})
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Println("No dice found.")
	}
	return nil
}

// --- Status ---

type StatusCmd struct{}

func (c *StatusCmd) Run(globals *CLI) error {
	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()

	ctx := context.Background()
	info := p.Info()

	fmt.Printf("Die:       %s\n", p.Name())
	if info != nil {
		fmt.Printf("Pixel ID:  %08x\n", info.PixelID)
		fmt.Printf("Firmware:  %s\n", info.Version)
		fmt.Printf("Flash:     %d bytes\n", info.FlashSize)
		fmt.Printf("Data set:  %08x\n", info.DataSetHash)
	}

	if bl, err := p.QueryBatteryLevel(ctx); err == nil {
		charging := ""
		if bl.Charging {
			charging = " (charging)"
		}
		fmt.Printf("Battery:   %.0f%%, %.2fV%s\n", bl.Level*100, bl.Voltage, charging)
	}
	if rssi, err := p.QueryRssi(ctx); err == nil {
		fmt.Printf("Signal:    %d\n", rssi.Value)
	}
	if temp, err := p.QueryTemperature(ctx); err == nil {
		fmt.Printf("MCU temp:  %d°C\n", temp.Celsius)
	}
	if roll, err := p.QueryRollState(ctx); err == nil {
		fmt.Printf("Roll:      %s, face %d\n", roll.State, roll.Face())
	}
	return nil
}

// --- Blink ---

type BlinkCmd struct {
	Color    string        `arg:"" optional:"" default:"0000ff" help:"LED color as RRGGBB hex"`
	Count    uint8         `short:"n" default:"3" help:"Number of flashes"`
	Duration time.Duration `default:"3s" help:"Total blink duration"`
	Fade     uint8         `default:"0" help:"Fade sharpness (0 = hard on/off)"`
}

func (c *BlinkCmd) Run(globals *CLI) error {
	color, err := parseColor(c.Color)
	if err != nil {
		return err
	}

	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()

	fmt.Printf("Blinking %s %d times...\n", c.Color, c.Count)
	return p.Blink(context.Background(), c.Count, color, c.Duration, c.Fade)
}

func parseColor(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: want RRGGBB hex", s)
	}
	return uint32(v), nil
}

// --- Animations ---

type AnimCmd struct {
	Play          AnimPlayCmd          `cmd:"" help:"Play a stored animation by index"`
	Stop          AnimStopCmd          `cmd:"" help:"Stop all running animations"`
	Upload        AnimUploadCmd        `cmd:"" help:"Upload a data-set file to flash"`
	UploadInstant AnimUploadInstantCmd `cmd:"" name:"upload-instant" help:"Upload a data-set file to RAM and keep it until power-off"`
}

type AnimPlayCmd struct {
	Index uint8 `arg:"" help:"Animation index in the die's data set"`
	Face  uint8 `default:"0" help:"Face to remap the animation onto"`
	Loop  bool  `help:"Loop until stopped"`
}

func (c *AnimPlayCmd) Run(globals *CLI) error {
	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()

	fmt.Printf("Playing animation %d...\n", c.Index)
	return p.PlayAnimation(c.Index, c.Face, c.Loop)
}

type AnimStopCmd struct{}

func (c *AnimStopCmd) Run(globals *CLI) error {
	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()
	return p.StopAllAnimations()
}

type AnimUploadCmd struct {
	File string `arg:"" help:"Data-set file to upload"`
}

func (c *AnimUploadCmd) Run(globals *CLI) error {
	return uploadDataSet(globals, c.File, false)
}

type AnimUploadInstantCmd struct {
	File string `arg:"" help:"Data-set file to upload"`
}

func (c *AnimUploadInstantCmd) Run(globals *CLI) error {
	return uploadDataSet(globals, c.File, true)
}

func uploadDataSet(globals *CLI, path string, instant bool) error {
	ds, name, err := store.ReadDataSetFile(path)
	if err != nil {
		return fmt.Errorf("failed to read data set: %w", err)
	}

	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()

	fmt.Printf("Uploading %d bytes (hash %08x)...\n", len(ds.Data), ds.Hash())
	progress := func(f float64) {
		fmt.Printf("\r  %3.0f%%", f*100)
	}

	ctx := context.Background()
	if instant {
		err = p.TransferInstantDataSet(ctx, ds, progress)
	} else {
		err = p.TransferDataSet(ctx, ds, progress)
	}
	fmt.Println()
	if err != nil {
		return err
	}
	fmt.Println("Upload complete.")

	// Record the set so it can be re-uploaded without the file.
	if s, serr := store.OpenDefault(); serr == nil {
		src := store.Source{
			Method:    "upload",
			DieName:   p.Name(),
			PixelID:   p.PixelID(),
			Filename:  path,
			Timestamp: time.Now(),
		}
		if _, _, serr := s.Import(ds, name, src); serr != nil {
			config.Debugf("store import: %v", serr)
		}
	}
	return nil
}

// --- Rename ---

type RenameCmd struct {
	Name string `arg:"" help:"New advertised name"`
}

func (c *RenameCmd) Run(globals *CLI) error {
	p, teardown, err := globals.connect()
	if err != nil {
		return err
	}
	defer teardown()

	fmt.Printf("Renaming %s to %s...\n", p.Name(), c.Name)
	return p.Rename(context.Background(), c.Name)
}

// --- Watch ---

type WatchCmd struct{}

func (c *WatchCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose
	return tui.Run(globals.Die, globals.ScanTimeout)
}

// --- Store ---

type StoreCmd struct {
	List   StoreListCmd   `cmd:"" help:"List all stored data sets"`
	Show   StoreShowCmd   `cmd:"" help:"Show details of a stored data set"`
	Import StoreImportCmd `cmd:"" help:"Import a data-set file into the store"`
	Export StoreExportCmd `cmd:"" help:"Export a stored data set to a file"`
}

type StoreListCmd struct{}

func (c *StoreListCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose

	s, err := store.OpenDefault()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	hashes, err := s.Hashes()
	if err != nil {
		return fmt.Errorf("failed to list data sets: %w", err)
	}
	if len(hashes) == 0 {
		fmt.Println("No data sets in store.")
		fmt.Println("Import one with: dicewire store import <set.json>")
		return nil
	}

	sets, err := s.List()
	if err != nil {
		return err
	}
	fmt.Printf("Found %d data set(s):\n\n", len(hashes))
	for _, hash := range hashes {
		entry := sets[hash]
		fmt.Printf("  %s  %-24s  %4d bytes  %d animation(s)\n",
			store.ShortHash(hash), entry.Name, entry.Size, entry.AnimationCount)
	}
	return nil
}

type StoreShowCmd struct {
	Hash string `arg:"" help:"Data set hash (full or short)"`
	Dump bool   `help:"Hex dump the payload"`
}

func (c *StoreShowCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose

	s, err := store.OpenDefault()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	ds, meta, err := s.Get(c.Hash)
	if err != nil {
		return err
	}

	fmt.Printf("Hash:        %s\n", meta.ContentHash)
	if meta.Name != "" {
		fmt.Printf("Name:        %s\n", meta.Name)
	}
	fmt.Printf("Size:        %d bytes\n", meta.Size)
	fmt.Printf("Wire hash:   %08x\n", meta.WireHash)
	fmt.Printf("Palette:     %d\n", meta.PaletteSize)
	fmt.Printf("Keyframes:   %d\n", meta.KeyframeCount)
	fmt.Printf("Tracks:      %d\n", meta.TrackCount)
	fmt.Printf("Animations:  %d\n", meta.AnimationCount)
	fmt.Printf("Created:     %s\n", meta.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Sources:\n")
	for _, src := range meta.Sources {
		detail := src.Filename
		if src.DieName != "" {
			detail = src.DieName
		}
		fmt.Printf("  %s  %-8s  %s\n", src.Timestamp.Format("2006-01-02 15:04"), src.Method, detail)
	}
	if c.Dump {
		fmt.Printf("\n%s", util.HexDump(ds.Data))
	}
	return nil
}

type StoreImportCmd struct {
	File string `arg:"" help:"Data-set file to import"`
}

func (c *StoreImportCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose

	ds, name, err := store.ReadDataSetFile(c.File)
	if err != nil {
		return fmt.Errorf("failed to read data set: %w", err)
	}
	s, err := store.OpenDefault()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	src := store.Source{Method: "import", Filename: c.File, Timestamp: time.Now()}
	hash, isNew, err := s.Import(ds, name, src)
	if err != nil {
		return err
	}
	if isNew {
		fmt.Printf("Imported %s (%d bytes)\n", store.ShortHash(hash), len(ds.Data))
	} else {
		fmt.Printf("Already in store as %s, source recorded\n", store.ShortHash(hash))
	}
	return nil
}

type StoreExportCmd struct {
	Hash   string `arg:"" help:"Data set hash (full or short)"`
	Output string `arg:"" help:"Destination file path"`
}

func (c *StoreExportCmd) Run(globals *CLI) error {
	config.Verbose = globals.Verbose

	s, err := store.OpenDefault()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	if err := s.Export(c.Hash, c.Output); err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", c.Output)
	return nil
}
