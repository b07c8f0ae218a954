//go:build x264 && cgo

package stream

/*
#cgo LDFLAGS: -lx264
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
#include <x264.h>

// --- C TARAFI: RGB24 -> YUV420 DÖNÜŞÜMÜ ---
static void rgb_to_yuv420(const uint8_t *rgb, uint8_t *y_plane, uint8_t *u_plane, uint8_t *v_plane,
                          int w, int h, int stride, int y_stride, int uv_stride) {
    for (int j = 0; j < h; j++) {
        const uint8_t *row = rgb + (j * stride);
        uint8_t *y_row = y_plane + (j * y_stride);
        for (int i = 0; i < w; i++) {
            uint8_t r = row[i * 3 + 0];
            uint8_t g = row[i * 3 + 1];
            uint8_t b = row[i * 3 + 2];

            int y_val = ((66 * r + 129 * g + 25 * b + 128) >> 8) + 16;
            if (y_val < 0) y_val = 0; else if (y_val > 255) y_val = 255;
            y_row[i] = (uint8_t)y_val;

            if ((j % 2) == 0 && (i % 2) == 0) {
                int u_val = ((-38 * r - 74 * g + 112 * b + 128) >> 8) + 128;
                int v_val = ((112 * r - 94 * g - 18 * b + 128) >> 8) + 128;
                if (u_val < 0) u_val = 0; else if (u_val > 255) u_val = 255;
                if (v_val < 0) v_val = 0; else if (v_val > 255) v_val = 255;
                int uv = (j / 2) * uv_stride + (i / 2);
                u_plane[uv] = (uint8_t)u_val;
                v_plane[uv] = (uint8_t)v_val;
            }
        }
    }
}

static x264_t* init_encoder(int width, int height, int fps, int crf, x264_param_t* param) {
    if (x264_param_default_preset(param, "veryfast", NULL) < 0) return NULL;

    param->i_width  = width;
    param->i_height = height;
    param->i_fps_num = fps;
    param->i_fps_den = 1;
    param->i_csp = X264_CSP_I420;

    // Dosya kaydı: sabit kalite, 2 saniyede bir keyframe
    param->i_keyint_max = fps * 2;
    param->rc.i_rc_method = X264_RC_CRF;
    param->rc.f_rf_constant = (float)crf;

    param->b_repeat_headers = 1;
    param->b_annexb = 1;

    x264_param_apply_profile(param, "high");
    param->i_log_level = X264_LOG_NONE;

    return x264_encoder_open(param);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"session-recorder/internal/video"
)

// Encoder wraps a libx264 handle. Input is an RGB frame of exactly
// Width x Height; output is Annex-B NAL units.
type Encoder struct {
	Width, Height int
	FPS           int

	handle *C.x264_t
	param  C.x264_param_t
	picIn  C.x264_picture_t
	picOut C.x264_picture_t

	frameIndex int64
	mu         sync.Mutex
}

func NewEncoder(w, h, fps, crf int) (*Encoder, error) {
	// Çözünürlük çift sayı olmalı
	w, h, err := encodeSize(w, h)
	if err != nil {
		return nil, fmt.Errorf("x264: %w", err)
	}

	e := &Encoder{Width: w, Height: h, FPS: fps}
	e.handle = C.init_encoder(C.int(w), C.int(h), C.int(fps), C.int(crf), &e.param)
	if e.handle == nil {
		return nil, errors.New("x264 başlatılamadı")
	}
	if C.x264_picture_alloc(&e.picIn, C.X264_CSP_I420, C.int(w), C.int(h)) < 0 {
		C.x264_encoder_close(e.handle)
		e.handle = nil
		return nil, errors.New("x264 picture alloc failed")
	}
	return e, nil
}

// Encode converts f to I420 and returns whatever NAL data the encoder
// emitted (possibly nil while it buffers lookahead frames).
func (e *Encoder) Encode(f *video.Frame) []byte {
	if f == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == nil {
		return nil
	}

	img := &e.picIn.img
	C.rgb_to_yuv420(
		(*C.uint8_t)(unsafe.Pointer(&f.Pix[0])),
		(*C.uint8_t)(unsafe.Pointer(img.plane[0])),
		(*C.uint8_t)(unsafe.Pointer(img.plane[1])),
		(*C.uint8_t)(unsafe.Pointer(img.plane[2])),
		C.int(e.Width), C.int(e.Height), C.int(f.Stride),
		img.i_stride[0], img.i_stride[1],
	)

	e.picIn.i_pts = C.int64_t(e.frameIndex)
	e.frameIndex++
	return e.encode(&e.picIn)
}

// Flush drains frames still held in the lookahead.
func (e *Encoder) Flush() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []byte
	for e.handle != nil && C.x264_encoder_delayed_frames(e.handle) > 0 {
		chunk := e.encode(nil)
		if chunk == nil {
			break
		}
		out = append(out, chunk...)
	}
	return out
}

func (e *Encoder) encode(pic *C.x264_picture_t) []byte {
	var nals *C.x264_nal_t
	var iNals C.int

	frameSize := C.x264_encoder_encode(e.handle, &nals, &iNals, pic, &e.picOut)
	if frameSize <= 0 || iNals <= 0 || nals == nil {
		return nil
	}

	// NAL Paketlerini Go Slice'ına kopyala
	nalSlice := unsafe.Slice(nals, int(iNals))
	out := make([]byte, 0, int(frameSize))
	for i := range nalSlice {
		n := int(nalSlice[i].i_payload)
		if n <= 0 || nalSlice[i].p_payload == nil {
			continue
		}
		out = append(out, unsafe.Slice((*byte)(unsafe.Pointer(nalSlice[i].p_payload)), n)...)
	}
	return out
}

func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != nil {
		C.x264_encoder_close(e.handle)
		C.x264_picture_clean(&e.picIn)
		e.handle = nil
	}
}
