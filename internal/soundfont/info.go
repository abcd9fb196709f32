package soundfont

import (
	"encoding/json"
	"fmt"
)

// BankInfo is the JSON summary of a bank.
type BankInfo struct {
	Version      string       `json:"ifil"`
	SoundEngine  string       `json:"isng,omitempty"`
	Name         string       `json:"INAM,omitempty"`
	ROM          string       `json:"irom,omitempty"`
	ROMVersion   string       `json:"iver,omitempty"`
	CreationDate string       `json:"ICRD,omitempty"`
	Engineers    string       `json:"IENG,omitempty"`
	Product      string       `json:"IPRD,omitempty"`
	Copyright    string       `json:"ICOP,omitempty"`
	Comments     string       `json:"ICMT,omitempty"`
	Tools        string       `json:"ISFT,omitempty"`
	Presets      []PresetInfo `json:"presets"`
}

type PresetInfo struct {
	Bank    uint16 `json:"bank"`
	Program uint16 `json:"no"`
	Name    string `json:"name"`
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Summary collects the file info and preset list of b.
func (b *Bank) Summary() BankInfo {
	i := b.info
	out := BankInfo{
		Version:      i.Version.String(),
		SoundEngine:  i.SoundEngine,
		Name:         i.Name,
		ROM:          i.ROM,
		CreationDate: i.CreationDate,
		Engineers:    i.Engineers,
		Product:      i.Product,
		Copyright:    i.Copyright,
		Comments:     i.Comments,
		Tools:        i.Tools,
		Presets:      make([]PresetInfo, 0, len(b.presets)),
	}
	if i.ROMVersion != nil {
		out.ROMVersion = i.ROMVersion.String()
	}
	for _, p := range b.presets {
		out.Presets = append(out.Presets, PresetInfo{Bank: p.ID.Bank, Program: p.ID.Program, Name: p.Name})
	}
	return out
}

// MarshalSummary renders Summary as indented JSON.
func (b *Bank) MarshalSummary() ([]byte, error) {
	return json.MarshalIndent(b.Summary(), "", "  ")
}
