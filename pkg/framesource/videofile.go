package framesource

/*
#cgo pkg-config: libavformat libavcodec libavutil libswscale

#include <stdlib.h>
#include <stdio.h>
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/imgutils.h>
#include <libswscale/swscale.h>
#include <libavutil/log.h>

typedef struct {
    AVFormatContext   *formatCtx;
    AVCodecContext    *codecCtx;
    AVFrame           *frame;
    AVFrame           *frameRGBA;
    struct SwsContext *swsCtx;
    int               videoStream;
    uint8_t           *bufferRGBA;
} vaiDecoder;

// init_vai_decoder opens filename and prepares the first video stream for
// RGBA frame-at-a-time decoding. Unlike a hardware-accelerated player, a
// source reader has no reason to prefer one decoder implementation over
// another, so it always takes whatever avcodec_find_decoder returns for
// the stream's codec id.
int init_vai_decoder(const char *filename, vaiDecoder *d) {
    av_log_set_level(AV_LOG_ERROR);
    d->videoStream = -1;

    if (avformat_open_input(&d->formatCtx, filename, NULL, NULL) != 0) {
        fprintf(stderr, "vai: could not open input file '%s'\n", filename);
        return -1;
    }
    if (avformat_find_stream_info(d->formatCtx, NULL) < 0) {
        fprintf(stderr, "vai: could not find stream information\n");
        return -2;
    }

    for (unsigned int i = 0; i < d->formatCtx->nb_streams; i++) {
        if (d->formatCtx->streams[i]->codecpar->codec_type == AVMEDIA_TYPE_VIDEO) {
            d->videoStream = (int)i;
            break;
        }
    }
    if (d->videoStream == -1) {
        fprintf(stderr, "vai: no video stream found\n");
        return -3;
    }

    AVCodecParameters *params = d->formatCtx->streams[d->videoStream]->codecpar;
    const AVCodec *codec = avcodec_find_decoder(params->codec_id);
    if (!codec) {
        fprintf(stderr, "vai: no decoder available for codec id %d\n", params->codec_id);
        return -4;
    }

    d->codecCtx = avcodec_alloc_context3(codec);
    if (!d->codecCtx) {
        return -5;
    }
    avcodec_parameters_to_context(d->codecCtx, params);
    d->codecCtx->thread_type = FF_THREAD_FRAME;
    d->codecCtx->thread_count = 0;

    if (avcodec_open2(d->codecCtx, codec, NULL) < 0) {
        fprintf(stderr, "vai: failed to open decoder %s\n", codec->name);
        return -6;
    }

    d->frame = av_frame_alloc();
    d->frameRGBA = av_frame_alloc();

    int width = d->codecCtx->width;
    int height = d->codecCtx->height;
    int numBytes = av_image_get_buffer_size(AV_PIX_FMT_RGBA, width, height, 1);
    d->bufferRGBA = (uint8_t *)av_malloc(numBytes * sizeof(uint8_t));
    av_image_fill_arrays(d->frameRGBA->data, d->frameRGBA->linesize, d->bufferRGBA, AV_PIX_FMT_RGBA, width, height, 1);

    d->swsCtx = sws_getContext(width, height, d->codecCtx->pix_fmt,
                                width, height, AV_PIX_FMT_RGBA,
                                SWS_BILINEAR, NULL, NULL, NULL);
    return 0;
}

// decode_vai_frame decodes the next frame. Returns 1 on success, 0 on EOF,
// negative on error.
int decode_vai_frame(vaiDecoder *d, uint8_t **rgba_data) {
    AVPacket packet;
    int ret;

    while (av_read_frame(d->formatCtx, &packet) >= 0) {
        if (packet.stream_index == d->videoStream) {
            ret = avcodec_send_packet(d->codecCtx, &packet);
            if (ret < 0) {
                av_packet_unref(&packet);
                return -1;
            }
            ret = avcodec_receive_frame(d->codecCtx, d->frame);
            if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) {
                av_packet_unref(&packet);
                continue;
            } else if (ret < 0) {
                av_packet_unref(&packet);
                return -2;
            }

            sws_scale(d->swsCtx,
                      (const uint8_t * const*)d->frame->data,
                      d->frame->linesize,
                      0,
                      d->codecCtx->height,
                      d->frameRGBA->data,
                      d->frameRGBA->linesize);

            *rgba_data = d->frameRGBA->data[0];
            av_packet_unref(&packet);
            return 1;
        }
        av_packet_unref(&packet);
    }
    return 0;
}

void close_vai_decoder(vaiDecoder *d) {
    if (!d) return;
    av_free(d->bufferRGBA);
    av_frame_free(&d->frameRGBA);
    av_frame_free(&d->frame);
    avcodec_free_context(&d->codecCtx);
    if (d->formatCtx) {
        avformat_close_input(&d->formatCtx);
    }
}

double vai_decoder_fps(vaiDecoder *d) {
    if (!d || d->videoStream < 0) {
        return 0;
    }
    AVStream *st = d->formatCtx->streams[d->videoStream];
    AVRational r = av_guess_frame_rate(d->formatCtx, st, NULL);
    if (r.den == 0) {
        return 0;
    }
    return av_q2d(r);
}
*/
import "C"

import (
	"fmt"
	"image"
	"io"
	"unsafe"

	"github.com/luminate-inc/vai/internal/rational"
)

// videoFileSource decodes real video files frame-by-frame via ffmpeg,
// the same libavformat/libavcodec/libswscale pipeline the teacher used
// to drive its SDL2 preview player, retargeted here from "decode for
// immediate display" to "decode for Source.Next()". A video file is a
// legitimate input to encode: its frame rate and RGBA output are
// whatever ffmpeg reports and produces, same as framesource.OpenPNGDir
// or OpenRawRGBA, so it is exercised through the exact same interface.
type videoFileSource struct {
	dec    C.vaiDecoder
	width  int
	height int
	fps    rational.Rate
}

// OpenVideoFile opens path with ffmpeg and returns a Source that decodes
// it into a sequence of RGBA frames at the stream's own reported frame
// rate. The returned Source owns the ffmpeg decoder; call Close when
// done.
func OpenVideoFile(path string) (Source, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	s := &videoFileSource{}
	if ret := C.init_vai_decoder(cPath, &s.dec); ret != 0 {
		return nil, fmt.Errorf("framesource: open %s: init_vai_decoder failed (code=%d)", path, int(ret))
	}

	s.width = int(s.dec.codecCtx.width)
	s.height = int(s.dec.codecCtx.height)

	fpsFloat := float64(C.vai_decoder_fps(&s.dec))
	s.fps = rateFromFloat(fpsFloat)

	return s, nil
}

// rateFromFloat approximates a floating-point frame rate as a small
// rational, falling back to 30/1 when ffmpeg could not report one.
func rateFromFloat(fps float64) rational.Rate {
	if fps <= 0 {
		return rational.Rate{Num: 30, Den: 1}
	}
	const den = 1001
	num := uint32(fps*den + 0.5)
	if num == 0 {
		num = den
	}
	return rational.Rate{Num: num, Den: den}
}

func (s *videoFileSource) Next() (*image.RGBA, error) {
	var data *C.uint8_t
	ret := C.decode_vai_frame(&s.dec, &data)
	switch {
	case ret == 0:
		return nil, io.EOF
	case ret < 0:
		return nil, fmt.Errorf("framesource: decode error (code=%d)", int(ret))
	}

	stride := s.width * 4
	raw := C.GoBytes(unsafe.Pointer(data), C.int(stride*s.height))

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, raw)
	return img, nil
}

func (s *videoFileSource) FPS() rational.Rate {
	return s.fps
}

func (s *videoFileSource) Close() error {
	C.close_vai_decoder(&s.dec)
	return nil
}
