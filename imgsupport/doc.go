// Package imgsupport provides image format conversion utilities for frames
// captured through a govis.Buffer. This package contains helper functions to
// convert between GenICam PFNC pixel formats and standard Go image formats.
//
// # Overview
//
// The imgsupport package bridges the gap between raw GenICam PixelFormat
// encodings and standard Go image formats. It provides converters for
// transforming acquired Buffer payloads into formats suitable for display,
// storage, or further processing.
//
// # Supported Conversions
//
//   - Mono8 to image.Gray
//   - Mono16 to image.Gray16
//   - RGB8 to image.RGBA
//   - YUV422_8 (packed, YUYV byte order) to image.YCbCr
//   - Any of the above to JPEG via ToJPEG
//
// # Pixel Format Background
//
// GenICam cameras commonly capture in Bayer or YUV formats rather than RGB
// because:
//   - Bayer sensors are cheaper and native to most CMOS/CCD imagers
//   - YUV is more efficient for video compression
//   - YUV separates luminance from chrominance, useful for video processing
//
// This package does not debayer: BayerRG8/BayerBG8 Buffers are exposed as
// single-channel Mono8-shaped images (the raw mosaic), since demosaicing
// is a quality/performance tradeoff better left to a dedicated package.
//
// # Usage Example
//
//	buf, err := st.PopOutput(ctx, time.Second)
//	img, err := imgsupport.Decode(buf)
//	jpegData, err := imgsupport.ToJPEG(img, nil)
//	os.WriteFile("output.jpg", jpegData, 0644)
package imgsupport
