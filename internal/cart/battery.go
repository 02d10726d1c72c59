package cart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SavePath derives the save-file path from the ROM path by replacing its
// extension (if any) with ".sav".
func SavePath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

func loadRAMImage(ram, data []byte) error {
	if len(data) < len(ram) {
		return errors.New("RAM save file is too small")
	}
	copy(ram, data[:len(ram)])
	return nil
}

// LoadSaveFile restores battery-backed state from path. A missing file is
// not an error: the cartridge simply starts fresh.
func LoadSaveFile(c Cartridge, path string) error {
	bb, ok := c.(BatteryBacked)
	if !ok || !c.Header().HasBattery {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read save file: %w", err)
	}

	if err := bb.LoadSaveData(data); err != nil {
		return fmt.Errorf("load save file %s: %w", path, err)
	}
	bb.markClean()
	return nil
}

// WriteSaveFile persists battery-backed state to path when there are unsaved
// changes.
func WriteSaveFile(c Cartridge, path string) error {
	bb, ok := c.(BatteryBacked)
	if !ok || !c.Header().HasBattery || !bb.Dirty() {
		return nil
	}

	if err := os.WriteFile(path, bb.SaveData(), 0644); err != nil {
		return fmt.Errorf("write save file: %w", err)
	}
	bb.markClean()
	return nil
}
