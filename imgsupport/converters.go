package imgsupport

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/lbnl-vision/gogenicam/govis"
)

// Decode interprets buf's first image Part according to its PixelFormat and
// returns a standard library image.Image view over it. The returned image
// shares memory with buf.Data where possible, so callers must not recycle
// buf (stream.PushInput) until done reading the image.
func Decode(buf *govis.Buffer) (image.Image, error) {
	if len(buf.Parts) == 0 {
		return nil, fmt.Errorf("imgsupport: buffer has no image parts")
	}
	p := buf.Parts[0]
	data := buf.Data[p.ByteOffset:]
	if uint64(len(data)) < p.ByteSize {
		return nil, fmt.Errorf("imgsupport: part declares %d bytes, buffer has %d", p.ByteSize, len(data))
	}
	data = data[:p.ByteSize]

	switch p.PixelFormat {
	case govis.PixelFormatMono8, govis.PixelFormatBayerRG8, govis.PixelFormatBayerBG8:
		return mono8(int(p.Width), int(p.Height), data)
	case govis.PixelFormatMono16, govis.PixelFormatMono12, govis.PixelFormatMono10:
		return mono16(int(p.Width), int(p.Height), data)
	case govis.PixelFormatRGB8:
		return rgb8(int(p.Width), int(p.Height), data)
	default:
		return nil, fmt.Errorf("imgsupport: unsupported pixel format %#08x", uint32(p.PixelFormat))
	}
}

func mono8(width, height int, data []byte) (image.Image, error) {
	if len(data) < width*height {
		return nil, fmt.Errorf("imgsupport: mono8 frame too short: have %d, want %d", len(data), width*height)
	}
	img := &image.Gray{Pix: data[:width*height], Stride: width, Rect: image.Rect(0, 0, width, height)}
	return img, nil
}

func mono16(width, height int, data []byte) (image.Image, error) {
	want := width * height * 2
	if len(data) < want {
		return nil, fmt.Errorf("imgsupport: mono16 frame too short: have %d, want %d", len(data), want)
	}
	img := &image.Gray16{Pix: data[:want], Stride: width * 2, Rect: image.Rect(0, 0, width, height)}
	return img, nil
}

func rgb8(width, height int, data []byte) (image.Image, error) {
	want := width * height * 3
	if len(data) < want {
		return nil, fmt.Errorf("imgsupport: rgb8 frame too short: have %d, want %d", len(data), want)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		r, g, b := data[i*3], data[i*3+1], data[i*3+2]
		img.SetRGBA(i%width, i/width, color.RGBA{R: r, G: g, B: b, A: 0xFF})
	}
	return img, nil
}

// Yuyv2Image converts a packed YUV 4:2:2 (YUYV byte order) frame into an
// image.YCbCr, two source pixels at a time.
func Yuyv2Image(width, height int, frame []byte) (*image.YCbCr, error) {
	want := width * height * 2
	if len(frame) < want {
		return nil, fmt.Errorf("imgsupport: yuyv frame too short: have %d, want %d", len(frame), want)
	}
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for row := 0; row < height; row++ {
		src := frame[row*width*2:]
		for col := 0; col < width; col += 2 {
			y1, u, y2, v := src[col*2], src[col*2+1], src[col*2+2], src[col*2+3]
			yi := img.YOffset(col, row)
			img.Y[yi] = y1
			img.Y[yi+1] = y2
			ci := img.COffset(col, row)
			img.Cb[ci] = u
			img.Cr[ci] = v
		}
	}
	return img, nil
}

// Yuyv2Jpeg converts a packed YUYV frame straight to JPEG, the common case
// of grabbing a still from a live stream for preview or logging.
func Yuyv2Jpeg(width, height int, frame []byte) ([]byte, error) {
	img, err := Yuyv2Image(width, height, frame)
	if err != nil {
		return nil, err
	}
	return ToJPEG(img, nil)
}

// ToJPEG encodes img, defaulting to jpeg.DefaultQuality when opts is nil.
func ToJPEG(img image.Image, opts *jpeg.Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
