package imageRecordService

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"

	"Myagara/internal/api/classification"
	classificationService "Myagara/internal/api/classification/service"
	"Myagara/internal/api/image_record"
	imageRecordRepository "Myagara/internal/api/image_record/repository"
	"Myagara/internal/entity"
	"Myagara/pkg/classifier"
	"Myagara/pkg/nn"
	"Myagara/pkg/utils"
	"Myagara/pkg/vision"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

var testClasses = []string{"Potato___Early_blight", "Potato___healthy"}

type fixedClassifier struct{}

func (fixedClassifier) Classify(_ context.Context, data []byte) (*classifier.Prediction, error) {
	if _, err := vision.Decode(data); err != nil {
		return nil, err
	}
	return classifier.NewPrediction([]float64{0.25, 0.75}, testClasses)
}

func (fixedClassifier) Metadata() nn.Metadata {
	return nn.Metadata{ModelVersion: "01HMODEL", Classes: testClasses, ImageSize: 4}
}

func (fixedClassifier) Close() error { return nil }

type memoryStore struct {
	mu      sync.Mutex
	records map[string]entity.ImageRecord
	failOn  string
}

func (s *memoryStore) CreateImageRecord(_ context.Context, record entity.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return errors.New("insert failed")
	}
	s.records[record.ID] = record
	return nil
}

func (s *memoryStore) GetImageRecordByID(_ context.Context, id string) (entity.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return entity.ImageRecord{}, image_record.ErrRecordNotFound
	}
	return record, nil
}

func (s *memoryStore) ListImageRecords(_ context.Context, limit, offset int) ([]entity.ImageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]entity.ImageRecord, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *memoryStore) CountImageRecords(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *memoryStore) UpdateImageRecord(_ context.Context, record entity.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return image_record.ErrRecordNotFound
	}
	s.records[record.ID] = record
	return nil
}

func (s *memoryStore) DeleteImageRecord(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		return "", image_record.ErrRecordNotFound
	}
	delete(s.records, id)
	return record.StorageURL, nil
}

func (s *memoryStore) DeleteAllImageRecords(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var urls []string
	for id, r := range s.records {
		urls = append(urls, r.StorageURL)
		delete(s.records, id)
	}
	return urls, nil
}

type memoryRepository struct {
	store *memoryStore
}

func (r *memoryRepository) NewClient(bool) (imageRecordRepository.Client, error) {
	return imageRecordRepository.Client{
		ImageRecord: r.store,
		Commit:      func() error { return nil },
		Rollback:    func() error { return nil },
	}, nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (o *memoryObjects) Upload(_ context.Context, name string, data []byte, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	location := "mem://" + name
	o.objects[location] = data
	return location, nil
}

func (o *memoryObjects) Delete(_ context.Context, location string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, location)
	return nil
}

func (o *memoryObjects) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

func newTestService(t *testing.T) (IImageRecordService, *memoryStore, *memoryObjects) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := &memoryStore{records: map[string]entity.ImageRecord{}}
	objects := &memoryObjects{objects: map[string][]byte{}}
	cs := classificationService.NewClassificationService(logger, fixedClassifier{}, classifier.BackendNative)
	svc := NewImageRecordService(logger, &memoryRepository{store: store}, cs, objects, utils.New(0))
	return svc, store, objects
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	img.Set(0, 0, color.NRGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadImageClassifiesAndStores(t *testing.T) {
	svc, store, objects := newTestService(t)
	data := leafPNG(t)

	record, err := svc.UploadImage(context.Background(), "../../leaf.png", data)
	require.NoError(t, err)

	assert.Len(t, record.ID, 26)
	assert.Equal(t, "leaf.png", record.Filename)
	assert.Equal(t, testClasses[1], record.Label)
	assert.Equal(t, 75.0, record.Confidence)
	assert.Equal(t, "01HMODEL", record.ModelVersion)
	assert.Equal(t, utils.New(0).ContentHash(data), record.ContentHash)
	assert.Regexp(t, `^mem://[0-9a-f-]{36}\.png$`, record.StorageURL)

	assert.Equal(t, 1, objects.count())
	stored, err := store.GetImageRecordByID(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, record, stored)
}

func TestUploadImageRejectsUndecodableBytes(t *testing.T) {
	svc, store, objects := newTestService(t)

	_, err := svc.UploadImage(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
	assert.ErrorIs(t, err, classification.ErrUndecodableImage)
	assert.ErrorContains(t, err, "DecodeError")
	assert.Equal(t, 0, objects.count())
	assert.Empty(t, store.records)
}

func TestUploadImageRemovesObjectWhenInsertFails(t *testing.T) {
	svc, store, objects := newTestService(t)
	store.failOn = "create"

	_, err := svc.UploadImage(context.Background(), "leaf.png", leafPNG(t))
	assert.ErrorIs(t, err, image_record.ErrCreateRecord)
	assert.Equal(t, 0, objects.count())
}

func TestListImageRecordsPaginates(t *testing.T) {
	svc, _, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		_, err := svc.UploadImage(context.Background(), "leaf.png", leafPNG(t))
		require.NoError(t, err)
	}

	records, total, err := svc.ListImageRecords(context.Background(), image_record.ListImageRecordsQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, records, 2)

	records, _, err = svc.ListImageRecords(context.Background(), image_record.ListImageRecordsQuery{})
	require.NoError(t, err)
	assert.Len(t, records, 5)

	_, _, err = svc.ListImageRecords(context.Background(), image_record.ListImageRecordsQuery{Limit: 500})
	assert.ErrorIs(t, err, image_record.ErrInvalidQuery)
	_, _, err = svc.ListImageRecords(context.Background(), image_record.ListImageRecordsQuery{Offset: -1})
	assert.ErrorIs(t, err, image_record.ErrInvalidQuery)
}

func TestUpdateImageRecordChangesOnlyGivenFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	record, err := svc.UploadImage(context.Background(), "leaf.png", leafPNG(t))
	require.NoError(t, err)

	label := testClasses[0]
	updated, err := svc.UpdateImageRecord(context.Background(), record.ID, image_record.UpdateImageRecordRequest{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, label, updated.Label)
	assert.Equal(t, record.Filename, updated.Filename)
	assert.Equal(t, record.Confidence, updated.Confidence)
	assert.False(t, updated.UpdatedAt.Before(record.UpdatedAt))

	_, err = svc.UpdateImageRecord(context.Background(), "missing", image_record.UpdateImageRecordRequest{Label: &label})
	assert.ErrorIs(t, err, image_record.ErrRecordNotFound)
}

func TestDeleteImageRecords(t *testing.T) {
	svc, _, objects := newTestService(t)
	first, err := svc.UploadImage(context.Background(), "a.png", leafPNG(t))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := svc.UploadImage(context.Background(), "b.png", leafPNG(t))
		require.NoError(t, err)
	}
	require.Equal(t, 3, objects.count())

	require.NoError(t, svc.DeleteImageRecord(context.Background(), first.ID))
	assert.Equal(t, 2, objects.count())
	_, err = svc.GetImageRecordByID(context.Background(), first.ID)
	assert.ErrorIs(t, err, image_record.ErrRecordNotFound)
	assert.ErrorIs(t, svc.DeleteImageRecord(context.Background(), first.ID), image_record.ErrRecordNotFound)

	deleted, err := svc.DeleteAllImageRecords(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 0, objects.count())
}
