package classifier

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Myagara/pkg/nn"
	"Myagara/pkg/redis"
	"Myagara/pkg/vision"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

const testSize = 4

var testClasses = []string{"Pepper__bell___Bacterial_spot", "Pepper__bell___healthy"}

// colourModel maps mostly-red images to class 0 and mostly-blue to class 1.
func colourModel(t *testing.T) (*nn.Model, nn.Metadata) {
	t.Helper()
	plane := testSize * testSize
	dense := nn.NewDense(3*plane, 2, nil)
	for p := 0; p < plane; p++ {
		dense.Weight.Value[p] = 1
		dense.Weight.Value[2*plane+p] = -1
		dense.Weight.Value[3*plane+p] = -1
		dense.Weight.Value[3*plane+2*plane+p] = 1
	}
	m, err := nn.NewSequential([]int{3, testSize, testSize}, nn.NewFlatten(), dense)
	require.NoError(t, err)

	meta := nn.Metadata{
		SchemaVersion: nn.MetadataSchemaVersion,
		ModelVersion:  "01HTESTMODEL",
		Classes:       testClasses,
		ImageSize:     testSize,
		InputShape:    []int64{1, 3, testSize, testSize},
	}
	return m, meta
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	red  = color.NRGBA{R: 230, G: 20, B: 10, A: 255}
	blue = color.NRGBA{R: 10, G: 20, B: 230, A: 255}
)

func TestNewPrediction(t *testing.T) {
	p, err := NewPrediction([]float64{0.123456, 0.876544}, testClasses)
	require.NoError(t, err)
	assert.Equal(t, testClasses[1], p.Label)
	assert.Equal(t, 1, p.Index)
	assert.Equal(t, 87.65, p.Confidence)

	_, err = NewPrediction([]float64{1}, testClasses)
	assert.ErrorIs(t, err, ErrInference)

	assert.Equal(t, 100.0, Percent(1.0000001))
	assert.Equal(t, 0.0, Percent(-0.2))
}

func TestNativeClassify(t *testing.T) {
	m, meta := colourModel(t)
	c, err := NewNative(m, meta)
	require.NoError(t, err)

	p, err := c.Classify(context.Background(), solidPNG(t, red))
	require.NoError(t, err)
	assert.Equal(t, testClasses[0], p.Label)
	assert.GreaterOrEqual(t, p.Confidence, 50.0)
	assert.LessOrEqual(t, p.Confidence, 100.0)

	p, err = c.Classify(context.Background(), solidPNG(t, blue))
	require.NoError(t, err)
	assert.Equal(t, testClasses[1], p.Label)

	_, err = c.Classify(context.Background(), []byte("GIF89a but not really"))
	assert.True(t, vision.IsDecodeError(err))
	assert.False(t, errors.Is(err, ErrInference))
}

func TestNativeIsSafeForConcurrentUse(t *testing.T) {
	m, meta := colourModel(t)
	c, err := NewNative(m, meta)
	require.NoError(t, err)

	images := map[string][]byte{
		testClasses[0]: solidPNG(t, red),
		testClasses[1]: solidPNG(t, blue),
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		want := testClasses[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Classify(context.Background(), images[want])
			if err != nil {
				errs <- err
				return
			}
			if p.Label != want {
				errs <- errors.New("got " + p.Label + ", want " + want)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNativeRejectsMismatchedMetadata(t *testing.T) {
	m, meta := colourModel(t)
	meta.Classes = []string{"only_one"}
	_, err := NewNative(m, meta)
	assert.ErrorIs(t, err, nn.ErrMetadataMismatch)
}

func TestLoadNativeFromArtifact(t *testing.T) {
	m, meta := colourModel(t)
	path := filepath.Join(t.TempDir(), "plants.nn")
	require.NoError(t, nn.SaveArtifact(m, meta, path))

	c, err := Load(Config{Backend: BackendNative, ModelPath: path})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, testClasses, c.Metadata().Classes)

	_, err = Load(Config{Backend: "tflite"})
	assert.Error(t, err)
}

func TestRemoteClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("image")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"No image file provided"}`))
			return
		}
		data, _ := io.ReadAll(file)
		w.Header().Set("Content-Type", "application/json")
		switch string(data) {
		case "broken":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"DecodeError: uploaded file is not a decodable image","code":"invalid_input"}`))
		case "crash":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"inference failed","code":"inference_failure"}`))
		default:
			_, _ = w.Write([]byte(`{"label":"Tomato_Leaf_Mold","confidence":91.27}`))
		}
	}))
	defer srv.Close()

	c, err := NewRemote(srv.URL+"/classify", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "remote:"+srv.URL+"/classify", c.Metadata().ModelVersion)
	assert.Empty(t, c.Metadata().Classes)

	p, err := c.Classify(context.Background(), []byte("leaf"))
	require.NoError(t, err)
	assert.Equal(t, "Tomato_Leaf_Mold", p.Label)
	assert.Equal(t, 91.27, p.Confidence)
	assert.Equal(t, -1, p.Index)

	_, err = c.Classify(context.Background(), []byte("broken"))
	assert.True(t, vision.IsDecodeError(err))

	_, err = c.Classify(context.Background(), []byte("crash"))
	assert.ErrorIs(t, err, ErrInference)

	_, err = NewRemote("", 0)
	assert.Error(t, err)
}

func TestRemoteReadsUpstreamModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/model":
			_, _ = w.Write([]byte(`{"backend":"native","model_version":"01HUPSTREAM","classes":["Pepper__bell___Bacterial_spot","Pepper__bell___healthy"],"image_size":128,"input_shape":[1,3,128,128]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/classify":
			_, _ = w.Write([]byte(`{"label":"Pepper__bell___healthy","confidence":88.5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := NewRemote(srv.URL+"/api/v1/classify", time.Second)
	require.NoError(t, err)

	meta := c.Metadata()
	assert.Equal(t, "remote:01HUPSTREAM", meta.ModelVersion)
	assert.Equal(t, testClasses, meta.Classes)
	assert.Equal(t, 128, meta.ImageSize)
	assert.Equal(t, []int64{1, 3, 128, 128}, meta.InputShape)

	p, err := c.Classify(context.Background(), []byte("leaf"))
	require.NoError(t, err)
	assert.Equal(t, 1, p.Index)
	assert.Contains(t, meta.Classes, p.Label)
}

func TestModelURL(t *testing.T) {
	assert.Equal(t, "http://10.0.0.5:5000/api/v1/model", modelURL("http://10.0.0.5:5000/classify"))
	assert.Equal(t, "http://10.0.0.5:5000/api/v1/model", modelURL("http://10.0.0.5:5000/api/v1/classify/"))
	assert.Equal(t, "http://plants.local/api/v1/model", modelURL("http://plants.local"))
}

type countingClassifier struct {
	calls atomic.Int32
	meta  nn.Metadata
}

func (c *countingClassifier) Classify(_ context.Context, image []byte) (*Prediction, error) {
	c.calls.Add(1)
	if len(image) == 0 {
		return nil, &vision.DecodeError{MIME: "empty input", Err: errors.New("no bytes")}
	}
	return &Prediction{Label: c.meta.Classes[len(image)%2], Index: len(image) % 2, Confidence: 75}, nil
}

func (c *countingClassifier) Metadata() nn.Metadata { return c.meta }
func (c *countingClassifier) Close() error          { return nil }

func TestCacheServesRepeatedImages(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	inner := &countingClassifier{meta: nn.Metadata{ModelVersion: "v1", Classes: testClasses}}
	c := WithCache(inner, store, time.Minute, logger)

	first, err := c.Classify(context.Background(), []byte("abc"))
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err = c.Classify(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	keys := mr.Keys()
	require.Len(t, keys, 2)
	assert.Contains(t, keys[0], "classification:v1:")
	assert.True(t, mr.TTL(keys[0]) > 0)

	_, err = c.Classify(context.Background(), nil)
	assert.True(t, vision.IsDecodeError(err))
	assert.Len(t, mr.Keys(), 2)

	inner.meta.ModelVersion = "v2"
	_, err = c.Classify(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestCacheFallsThroughWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redis.NewFromClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	mr.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	inner := &countingClassifier{meta: nn.Metadata{ModelVersion: "v1", Classes: testClasses}}
	c := WithCache(inner, store, time.Minute, logger)

	p, err := c.Classify(context.Background(), []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, testClasses[1], p.Label)
}

func TestInputLayout(t *testing.T) {
	nhwc, err := inputLayout([]int64{1, 3, 128, 128}, 128)
	require.NoError(t, err)
	assert.False(t, nhwc)

	nhwc, err = inputLayout([]int64{1, 32, 32, 3}, 32)
	require.NoError(t, err)
	assert.True(t, nhwc)

	_, err = inputLayout([]int64{1, 3, 64, 64}, 128)
	assert.ErrorIs(t, err, nn.ErrMetadataMismatch)
	_, err = inputLayout([]int64{3, 32, 32}, 32)
	assert.Error(t, err)
}

func TestFillInputMatchesPreprocess(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	want := vision.ToTensor(img)

	chw := make([]float32, 18)
	fillInput(chw, img, false)
	for i, v := range want.Data {
		assert.InDelta(t, v, float64(chw[i]), 1e-6)
	}

	hwc := make([]float32, 18)
	fillInput(hwc, img, true)
	plane := 6
	for p := 0; p < plane; p++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, want.Data[c*plane+p], float64(hwc[p*3+c]), 1e-6)
		}
	}
}
