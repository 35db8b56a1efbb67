package render

import (
	"fmt"

	"github.com/eak1mov/go-globetiles/layer"
)

// Suffix names a slot of a tile pile in uniform names.
type Suffix int

const (
	SuffixNone Suffix = iota
	SuffixParent1
	SuffixParent2
)

var suffixNames = [...]string{"", "Parent1", "Parent2"}

func (s Suffix) String() string {
	return suffixNames[s]
}

// TileUniform is the name of a per-tile uniform field, for example
// "ColorLayersParent1[2].uvTransform.uvScale".
func TileUniform(c layer.Category, s Suffix, index int, field string) string {
	return fmt.Sprintf("%v%v[%d].%s", c, s, index, field)
}

// SettingsUniform is the name of a per-layer settings field such as "opacity".
func SettingsUniform(c layer.Category, index int, field string) string {
	return fmt.Sprintf("%vSettings[%d].%s", c, index, field)
}

// Tile fields.
const (
	FieldTextureSampler = "textureSampler"
	FieldUVScale        = "uvTransform.uvScale"
	FieldUVOffset       = "uvTransform.uvOffset"
	FieldDepthScale     = "depthTransform.depthScale"
	FieldDepthOffset    = "depthTransform.depthOffset"
)

// Settings fields.
const (
	FieldOpacity            = "opacity"
	FieldGamma              = "gamma"
	FieldMultiplier         = "multiplier"
	FieldOffset             = "offset"
	FieldPadStartOffset     = "padding.startOffset"
	FieldPadSizeDifference  = "padding.sizeDifference"
	FieldChromaKeyColor     = "chromaKeyColor"
	FieldChromaKeyTolerance = "chromaKeyTolerance"
)

// Chunk uniforms.
const (
	UniformSkirtLength         = "skirtLength"
	UniformXSegments           = "xSegments"
	UniformChunkMinHeight      = "chunkMinHeight"
	UniformVertexResolution    = "vertexResolution"
	UniformCameraPosition      = "cameraPosition"
	UniformDistanceScaleFactor = "distanceScaleFactor"
	UniformChunkLevel          = "chunkLevel"
	UniformLightDirection      = "lightDirectionCameraSpace"

	UniformModelViewProjection = "modelViewProjectionTransform"
	UniformModelView           = "modelViewTransform"
	UniformMinLatLon           = "minLatLon"
	UniformLonLatScaling       = "lonLatScalingFactor"
	UniformRadiiSquared        = "radiiSquared"

	UniformProjection  = "projectionTransform"
	UniformPatchNormal = "patchNormalCameraSpace"
)

// Local mode corner uniforms, indexed by geo.Quad.
var cornerUniforms = [4]string{"p01", "p11", "p00", "p10"}
