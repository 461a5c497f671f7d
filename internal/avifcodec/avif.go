// Package avifcodec is a thin, stateless, thread-safe wrapper over
// libavif: it encodes an RGBA image at a given quality to AVIF bytes,
// and decodes AVIF bytes back into an RGBA image of declared
// dimensions. It holds no package-level state, so a single codec value
// (there is nothing to construct — the functions are free functions)
// may be called concurrently from every asset-encoding goroutine the
// encoder pipeline spins up.
//
// Grounded on other_examples/b5692b66_DND-IT-avif-go__avif.go.go: same
// avifEncoderCreate/avifImageRGBToYUV/avifEncoderAddImage/
// avifEncoderFinish encode path and avifDecoderCreate/
// avifDecoderSetIOMemory/avifDecoderParse/avifDecoderNextImage decode
// path, retargeted from that package's CLI byte-array API to VAI's
// image.RGBA <-> []byte contract and its 0..100 spec-level quality
// scalar.
package avifcodec

/*
#cgo pkg-config: libavif
#include <stdlib.h>
#include <avif/avif.h>

static const char *vai_avif_result_string(avifResult r) {
	return avifResultToString(r);
}
*/
import "C"

import (
	"image"
	"unsafe"

	"github.com/luminate-inc/vai/internal/vaierrors"
)

// Encode compresses img at the given quality (0..100, where 100 is
// lossless-equivalent) and returns the AVIF byte payload.
func Encode(img *image.RGBA, quality int) ([]byte, error) {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	if width == 0 || height == 0 {
		return nil, vaierrors.Newf(vaierrors.KindInvalidHeader, "cannot encode a %dx%d image", width, height)
	}

	avifImage := C.avifImageCreate(C.uint32_t(width), C.uint32_t(height), 8, C.AVIF_PIXEL_FORMAT_YUV420)
	if avifImage == nil {
		return nil, vaierrors.New(vaierrors.KindIoError, "avifImageCreate failed")
	}
	defer C.avifImageDestroy(avifImage)

	// Pack pixels into a tightly-strided buffer: img.Stride may exceed
	// width*4 when the RGBA came from a sub-image crop.
	packed := packRGBA(img)

	var rgb C.avifRGBImage
	C.avifRGBImageSetDefaults(&rgb, avifImage)
	rgb.format = C.AVIF_RGB_FORMAT_RGBA
	rgb.depth = 8
	rgb.pixels = (*C.uint8_t)(unsafe.Pointer(&packed[0]))
	rgb.rowBytes = C.uint32_t(width * 4)

	if res := C.avifImageRGBToYUV(avifImage, &rgb); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindIoError, "avifImageRGBToYUV: %s", C.GoString(C.vai_avif_result_string(res)))
	}

	encoder := C.avifEncoderCreate()
	if encoder == nil {
		return nil, vaierrors.New(vaierrors.KindIoError, "avifEncoderCreate failed")
	}
	defer C.avifEncoderDestroy(encoder)

	q := rescaleQuality(quality)
	encoder.quality = C.int(q)
	encoder.qualityAlpha = C.int(q)
	encoder.speed = 6

	if res := C.avifEncoderAddImage(encoder, avifImage, 1, C.AVIF_ADD_IMAGE_FLAG_SINGLE); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindIoError, "avifEncoderAddImage: %s", C.GoString(C.vai_avif_result_string(res)))
	}

	var out C.avifRWData
	defer C.avifRWDataFree(&out)
	if res := C.avifEncoderFinish(encoder, &out); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindIoError, "avifEncoderFinish: %s", C.GoString(C.vai_avif_result_string(res)))
	}

	return C.GoBytes(unsafe.Pointer(out.data), C.int(out.size)), nil
}

// Decode decompresses an AVIF payload into an RGBA image and checks
// its dimensions against the container-declared width/height.
func Decode(data []byte, declaredWidth, declaredHeight uint32) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, vaierrors.New(vaierrors.KindCorruptAsset, "empty AVIF payload")
	}

	decoder := C.avifDecoderCreate()
	if decoder == nil {
		return nil, vaierrors.New(vaierrors.KindIoError, "avifDecoderCreate failed")
	}
	defer C.avifDecoderDestroy(decoder)

	if res := C.avifDecoderSetIOMemory(decoder, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.size_t(len(data))); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindCorruptAsset, "avifDecoderSetIOMemory: %s", C.GoString(C.vai_avif_result_string(res)))
	}
	if res := C.avifDecoderParse(decoder); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindCorruptAsset, "avifDecoderParse: %s", C.GoString(C.vai_avif_result_string(res)))
	}
	if res := C.avifDecoderNextImage(decoder); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindCorruptAsset, "avifDecoderNextImage: %s", C.GoString(C.vai_avif_result_string(res)))
	}

	avifImage := decoder.image
	width := uint32(avifImage.width)
	height := uint32(avifImage.height)
	if width != declaredWidth || height != declaredHeight {
		return nil, vaierrors.Newf(vaierrors.KindDimensionMismatch, "decoded %dx%d, container declared %dx%d", width, height, declaredWidth, declaredHeight)
	}

	img := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))

	var rgb C.avifRGBImage
	C.avifRGBImageSetDefaults(&rgb, avifImage)
	rgb.format = C.AVIF_RGB_FORMAT_RGBA
	rgb.depth = 8
	rgb.rowBytes = C.uint32_t(img.Stride)
	if len(img.Pix) == 0 {
		return img, nil
	}
	rgb.pixels = (*C.uint8_t)(unsafe.Pointer(&img.Pix[0]))

	if res := C.avifImageYUVToRGB(avifImage, &rgb); res != C.AVIF_RESULT_OK {
		return nil, vaierrors.Newf(vaierrors.KindCorruptAsset, "avifImageYUVToRGB: %s", C.GoString(C.vai_avif_result_string(res)))
	}

	return img, nil
}

// rescaleQuality maps the spec's 0..100 scalar linearly onto
// libavif's own 0 (worst) .. 100 (best, lossless-equivalent) quality
// range, clamping out-of-range input defensively.
func rescaleQuality(quality int) int {
	if quality < 0 {
		return 0
	}
	if quality > 100 {
		return 100
	}
	return quality
}

// packRGBA copies img's pixels into a tightly-packed width*4-stride
// buffer, since libavif's rowBytes must match the buffer actually
// passed and img.Stride can be wider than width*4 for sub-images.
func packRGBA(img *image.RGBA) []byte {
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()
	stride := width * 4
	out := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		srcOff := img.PixOffset(img.Bounds().Min.X, img.Bounds().Min.Y+y)
		copy(out[y*stride:(y+1)*stride], img.Pix[srcOff:srcOff+stride])
	}
	if len(out) == 0 {
		// avifRGBImage.pixels must be non-nil even for degenerate
		// images; callers never hit this path since Encode rejects
		// zero-sized images above, kept only to document the invariant.
		return []byte{0, 0, 0, 0}
	}
	return out
}
