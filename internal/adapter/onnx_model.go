package adapter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"

	"github.com/origuard-ai/origuard/internal/imagesim"
)

const modelFileName = "synthetic_v1.onnx"

// SyntheticModel wraps an ONNX image classifier that scores how likely an
// image is machine-generated. The session and its tensors are preallocated
// once and guarded by a mutex; inference is serialized.
type SyntheticModel struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	version string

	mu sync.Mutex
}

// LoadSyntheticModel initializes the ONNX session for the classifier bundle
// in dir. The model file is expected at <dir>/synthetic_v1.onnx.
func LoadSyntheticModel(dir string, imageSize int) (*SyntheticModel, error) {
	if dir == "" {
		return nil, errors.New("model dir is empty")
	}
	if imageSize <= 0 {
		imageSize = 224
	}

	libPath := resolveSharedLibraryPath(dir)
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	} else {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or place it in the model dir")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(dir, modelFileName)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", modelPath, err)
	}

	inputShape := ort.NewShape(1, 3, int64(imageSize), int64(imageSize))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"logits"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &SyntheticModel{
		session: session,
		input:   input,
		output:  output,
		size:    imageSize,
		version: "synthetic_v1",
	}, nil
}

// Version identifies the loaded model bundle.
func (m *SyntheticModel) Version() string { return m.version }

// Score decodes the image, runs the classifier, and returns a probability-like
// value in [0,1].
func (m *SyntheticModel) Score(ctx context.Context, imageBytes []byte) (float32, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	img, err := imagesim.Decode(imageBytes)
	if err != nil {
		return 0, fmt.Errorf("decode image: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.fillInput(img)

	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("run onnx session: %w", err)
	}

	logits := m.output.GetData()
	if len(logits) == 0 {
		return 0, errors.New("empty model output")
	}
	return sigmoid(logits[0]), nil
}

// fillInput writes the resized image into the preallocated tensor in CHW
// order with pixel values scaled to [0,1].
func (m *SyntheticModel) fillInput(img image.Image) {
	resized := image.NewRGBA(image.Rect(0, 0, m.size, m.size))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	data := m.input.GetData()
	plane := m.size * m.size
	for y := 0; y < m.size; y++ {
		for x := 0; x < m.size; x++ {
			i := resized.PixOffset(x, y)
			idx := y*m.size + x
			data[idx] = float32(resized.Pix[i]) / 255.0
			data[plane+idx] = float32(resized.Pix[i+1]) / 255.0
			data[2*plane+idx] = float32(resized.Pix[i+2]) / 255.0
		}
	}
}

// Close releases the ONNX session and tensors.
func (m *SyntheticModel) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.input != nil {
		m.input.Destroy()
		m.input = nil
	}
	if m.output != nil {
		m.output.Destroy()
		m.output = nil
	}
}

func sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}

func resolveSharedLibraryPath(dir string) string {
	if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"libonnxruntime.so", "libonnxruntime.dylib", "onnxruntime.dll"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
