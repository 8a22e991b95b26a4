package models

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/snapcam/internal/platform"
)

// PixelFormat is a pixel format name accepted by the API.
type PixelFormat string

var pixelFormats = []platform.PixelFormat{
	platform.FormatBGR888,
	platform.FormatRGB888,
	platform.FormatYUYV,
	platform.FormatNV12,
	platform.FormatMJPEG,
}

// Schema lists the supported formats as an enum.
func (PixelFormat) Schema(huma.Registry) *huma.Schema {
	enum := make([]any, 0, len(pixelFormats))
	for _, f := range pixelFormats {
		enum = append(enum, string(f))
	}
	return &huma.Schema{
		Type:        huma.TypeString,
		Enum:        enum,
		Description: "Pixel format name",
	}
}

type DeviceInfo struct {
	DeviceID string       `json:"device_id" example:"usb-046d_0825-video-index0" doc:"Stable device identifier"`
	Name     string       `json:"name" example:"UVC Camera (046d:0825)" doc:"Device name"`
	Path     string       `json:"path,omitempty" example:"/dev/video0" doc:"Device node"`
	InUse    bool         `json:"in_use" doc:"Whether this process holds the device"`
	Formats  []FormatInfo `json:"formats,omitempty" doc:"Supported formats, when requested"`
}

type FormatInfo struct {
	Format      string          `json:"format" example:"YUYV" doc:"Pixel format"`
	Description string          `json:"description,omitempty" example:"YUYV 4:2:2" doc:"Driver description"`
	Sizes       []platform.Size `json:"sizes" doc:"Offered frame sizes"`
}

// NewFormatInfo converts platform capabilities.
func NewFormatInfo(caps []platform.FormatCaps) []FormatInfo {
	out := make([]FormatInfo, 0, len(caps))
	for _, c := range caps {
		out = append(out, FormatInfo{Format: string(c.Format), Description: c.Description, Sizes: c.Sizes})
	}
	return out
}

type DevicesInput struct {
	Formats bool `query:"formats" doc:"Include formats and sizes for each device"`
}

type DeviceData struct {
	Devices []DeviceInfo `json:"devices" doc:"Enumerated cameras"`
	Count   int          `json:"count" example:"1" doc:"Number of cameras"`
}

type DeviceResponse struct {
	Body DeviceData
}

type DeviceFormatsInput struct {
	DeviceID string      `path:"device_id" example:"usb-046d_0825-video-index0" doc:"Stable device identifier"`
	Format   PixelFormat `query:"format" required:"false" doc:"Only report this format"`
}

type DeviceFormatsData struct {
	DeviceID string       `json:"device_id" doc:"Stable device identifier"`
	Formats  []FormatInfo `json:"formats" doc:"Supported formats"`
}

type DeviceFormatsResponse struct {
	Body DeviceFormatsData
}
