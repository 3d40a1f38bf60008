package dataset

import (
	"errors"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"Myagara/pkg/vision"

	"github.com/gabriel-vasile/mimetype"
)

var ErrEmptyDataset = errors.New("dataset has no images")

type Options struct {
	Dir             string
	ImageSize       int
	ValidationSplit float64
	Seed            int64
	Workers         int
}

// Sample is one file and the index of its class.
type Sample struct {
	Path  string
	Label int
}

// Dataset holds the class names (sorted subdirectory names), the
// train/validation split and every image decoded and resized once.
type Dataset struct {
	Classes    []string
	ImageSize  int
	Train      []Sample
	Validation []Sample
	// Skipped lists files that look like images but could not be decoded.
	Skipped []string

	images map[string]*image.NRGBA
}

// Load lists Dir/<class>/<file>, shuffles the files with Seed and holds out
// the last ValidationSplit fraction for validation. Files whose content is not
// an image, or that fail to decode, are left out; the latter are reported in
// Skipped. Read errors are fatal.
func Load(opts Options) (*Dataset, error) {
	if opts.ImageSize <= 0 {
		return nil, fmt.Errorf("invalid image size %d", opts.ImageSize)
	}
	if opts.ValidationSplit < 0 || opts.ValidationSplit >= 1 {
		return nil, fmt.Errorf("validation split %v outside [0, 1)", opts.ValidationSplit)
	}

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	var classes []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) < 2 {
		return nil, fmt.Errorf("dataset %s needs at least 2 class directories, found %d", opts.Dir, len(classes))
	}

	var samples []Sample
	for label, class := range classes {
		files, err := listImages(filepath.Join(opts.Dir, class))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			samples = append(samples, Sample{Path: f, Label: label})
		}
	}
	ds := &Dataset{
		Classes:   classes,
		ImageSize: opts.ImageSize,
	}
	if err := ds.decodeAll(samples, opts.Workers); err != nil {
		return nil, err
	}

	decoded := samples[:0]
	for _, s := range samples {
		if _, ok := ds.images[s.Path]; ok {
			decoded = append(decoded, s)
		}
	}
	samples = decoded
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(samples), func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
	})

	numVal := int(opts.ValidationSplit * float64(len(samples)))
	split := len(samples) - numVal

	ds.Train = samples[:split]
	ds.Validation = samples[split:]
	return ds, nil
}

// Image returns the resized image of a sample. The returned image is shared
// and must not be modified.
func (d *Dataset) Image(s Sample) (*image.NRGBA, error) {
	img, ok := d.images[s.Path]
	if !ok {
		return nil, fmt.Errorf("sample %s is not part of the dataset", s.Path)
	}
	return img, nil
}

func (d *Dataset) decodeAll(samples []Sample, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type decoded struct {
		path string
		img  *image.NRGBA
		err  error
	}

	jobs := make(chan string)
	results := make(chan decoded)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				img, err := readImage(path, d.ImageSize)
				results <- decoded{path: path, img: img, err: err}
			}
		}()
	}
	go func() {
		for _, s := range samples {
			jobs <- s.Path
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	d.images = make(map[string]*image.NRGBA, len(samples))
	var errs []error
	for r := range results {
		switch {
		case vision.IsDecodeError(r.err):
			d.Skipped = append(d.Skipped, r.path)
		case r.err != nil:
			errs = append(errs, r.err)
		default:
			d.images[r.path] = r.img
		}
	}
	sort.Strings(d.Skipped)
	return errors.Join(errs...)
}

func readImage(path string, size int) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := vision.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vision.Resize(img, size), nil
}

func listImages(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			return fmt.Errorf("sniff %s: %w", path, err)
		}
		if strings.HasPrefix(mtype.String(), "image/") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
