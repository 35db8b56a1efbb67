package layer

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/eak1mov/go-globetiles/provider"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrUnknownLayerType = errors.New("globetiles: unknown layer type")
	ErrUnknownBlendMode = errors.New("globetiles: unknown blend mode")
	ErrUnknownCategory  = errors.New("globetiles: unknown layer category")
)

// Category is the semantic role of a layer's texture.
type Category int

const (
	CategoryHeight Category = iota
	CategoryColor
	CategoryOverlay
	CategoryNight
	CategoryWater
	numCategories
)

// Categories lists every category in shader order.
var Categories = []Category{CategoryHeight, CategoryColor, CategoryOverlay, CategoryNight, CategoryWater}

var categoryNames = [numCategories]string{"HeightLayers", "ColorLayers", "Overlays", "NightLayers", "WaterMasks"}

func (c Category) String() string {
	if c >= 0 && c < numCategories {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Type is the declared kind of a layer. Every type but SolidColor is backed by a provider.
type Type int

const (
	TypeDefaultTile Type = iota
	TypeSingleImage
	TypeSizeReference
	TypeTemporal
	TypeTileIndex
	TypeByIndex
	TypeByLevel
	TypeSolidColor
	numTypes
)

var typeNames = [numTypes]string{
	"DefaultTileLayer",
	"SingleImageTileLayer",
	"SizeReferenceTileLayer",
	"TemporalTileLayer",
	"TileIndexTileLayer",
	"ByIndexTileLayer",
	"ByLevelTileLayer",
	"SolidColor",
}

func (t Type) String() string {
	if t >= 0 && t < numTypes {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a declared type name to a Type. An empty name is the default tiled layer.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeDefaultTile, nil
	}
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLayerType, s)
}

// ProviderKind returns the provider variant backing t. ok is false for SolidColor.
func (t Type) ProviderKind() (kind provider.Kind, ok bool) {
	switch t {
	case TypeDefaultTile:
		return provider.KindTiled, true
	case TypeSingleImage:
		return provider.KindSingleImage, true
	case TypeSizeReference:
		return provider.KindLevelColored, true
	case TypeTemporal:
		return provider.KindTemporal, true
	case TypeTileIndex:
		return provider.KindIndexColored, true
	case TypeByIndex:
		return provider.KindByIndex, true
	case TypeByLevel:
		return provider.KindByLevel, true
	}
	return 0, false
}

type BlendMode int

const (
	BlendNormal BlendMode = iota
	BlendMultiply
	BlendAdd
	BlendSubtract
	BlendColor
	numBlendModes
)

var blendModeNames = [numBlendModes]string{"Normal", "Multiply", "Add", "Subtract", "Color"}

func (b BlendMode) String() string {
	if b >= 0 && b < numBlendModes {
		return blendModeNames[b]
	}
	return fmt.Sprintf("BlendMode(%d)", int(b))
}

// ParseBlendMode maps a blend mode name to a BlendMode. An empty name is Normal.
func ParseBlendMode(s string) (BlendMode, error) {
	if s == "" {
		return BlendNormal, nil
	}
	for i, name := range blendModeNames {
		if name == s {
			return BlendMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBlendMode, s)
}

// Settings are per-layer numeric adjustments applied by the shader:
// value = multiplier * pow(sample, gamma) + offset, then scaled by opacity.
type Settings struct {
	Opacity    float32
	Gamma      float32
	Multiplier float32
	Offset     float32
}

func DefaultSettings() Settings {
	return Settings{Opacity: 1, Gamma: 1, Multiplier: 1, Offset: 0}
}

type AdjustmentKind int

const (
	AdjustmentNone AdjustmentKind = iota
	AdjustmentChromaKey
	AdjustmentTransferFunction
)

func (k AdjustmentKind) String() string {
	switch k {
	case AdjustmentNone:
		return "None"
	case AdjustmentChromaKey:
		return "ChromaKey"
	case AdjustmentTransferFunction:
		return "TransferFunction"
	}
	return fmt.Sprintf("AdjustmentKind(%d)", int(k))
}

// Adjustment is a per-layer color correction. Changing its kind changes the shader.
type Adjustment struct {
	Kind               AdjustmentKind
	ChromaKeyColor     mgl32.Vec3
	ChromaKeyTolerance float32
	TransferFunction   string
}

// Record is the declared configuration of one layer.
type Record struct {
	ID        string
	Name      string
	Type      string
	Enabled   bool
	BlendMode BlendMode

	// Settings are replaced by DefaultSettings when left zero.
	Settings   Settings
	Adjustment Adjustment

	PadTiles bool
	// LevelBlending asks the group to blend this layer across three pile levels.
	LevelBlending bool

	// Color is the constant color of a SolidColor layer.
	Color color.NRGBA

	// Provider holds the variant parameters. Kind, Name, Height and PadTiles are derived
	// from the record.
	Provider provider.Params
}
