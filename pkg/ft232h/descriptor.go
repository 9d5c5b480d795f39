package ft232h

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/yunginnanet/ft232h"
)

var ErrBadDescriptor = errors.New("invalid FT232H descriptor provided")

// Descriptor selects one FT232H among the devices attached to the host.
// The first non-empty field wins: Index, then Serial, then Description,
// then a raw mask.
type Descriptor struct {
	Index       int
	Serial      string
	Description string
	mask        *ft232h.Mask
}

// ByIndex returns a [Descriptor] matching the n-th attached device.
func ByIndex(index int) Descriptor {
	return Descriptor{Index: index}
}

// BySerial returns a [Descriptor] matching the device's USB serial number.
func BySerial(serial string) Descriptor {
	return Descriptor{Serial: serial, Index: -1}
}

// ByDescription returns a [Descriptor] matching the device's USB product string.
func ByDescription(desc string) Descriptor {
	return Descriptor{Description: desc, Index: -1}
}

// ByMask returns a [Descriptor] wrapping a library mask as-is.
func ByMask(mask *ft232h.Mask) Descriptor {
	return Descriptor{mask: mask, Index: -1}
}

// Validate checks that the descriptor can match at least one device.
func (d Descriptor) Validate() error {
	if d.Index < 0 && d.Serial == "" && d.Description == "" && emptyMask(d.mask) {
		return ErrBadDescriptor
	}
	return nil
}

// Mask returns a new [ft232h.Mask] for the descriptor. The wrapped mask,
// if any, is copied rather than modified.
func (d Descriptor) Mask() *ft232h.Mask {
	m := new(ft232h.Mask)
	if d.mask != nil {
		*m = *d.mask
	}
	if d.Serial != "" {
		m.Serial = d.Serial
	}
	if d.Description != "" {
		m.Desc = d.Description
	}
	if d.Index >= 0 {
		m.Index = strconv.Itoa(d.Index)
	}
	return m
}

func (d Descriptor) String() string {
	switch {
	case d.Index >= 0:
		return fmt.Sprintf("FT232H#%d", d.Index)
	case d.Serial != "":
		return "FT232H(serial=" + d.Serial + ")"
	case d.Description != "":
		return "FT232H(desc=" + d.Description + ")"
	default:
		return fmt.Sprintf("FT232H(mask=%+v)", d.mask)
	}
}

func emptyMask(mask *ft232h.Mask) bool {
	return mask == nil || (mask.Serial == "" && mask.PID == "" && mask.VID == "" && mask.Desc == "" && mask.Index == "")
}

// DeviceInfo is a snapshot of the USB identity of an open [FT232H].
type DeviceInfo struct {
	Index       int    `json:"index" yaml:"index"`
	Serial      string `json:"serial" yaml:"serial"`
	Description string `json:"description" yaml:"description"`
	VendorID    string `json:"vid" yaml:"vid"`
	ProductID   string `json:"pid" yaml:"pid"`
	IsOpen      bool   `json:"open" yaml:"open"`
	IsHighSpeed bool   `json:"high_speed" yaml:"high_speed"`
}

func (i DeviceInfo) String() string {
	return fmt.Sprintf("[%d] %s:%s %q serial=%s open=%t hs=%t",
		i.Index, i.VendorID, i.ProductID, i.Description, i.Serial, i.IsOpen, i.IsHighSpeed)
}
