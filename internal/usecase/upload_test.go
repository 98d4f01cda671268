package usecase_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/domain/mocks"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
	"github.com/fairyhunter13/mainalyze/internal/validation"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
)

func file(name string, data []byte) usecase.IncomingFile {
	return usecase.IncomingFile{Name: name, Size: int64(len(data)), Body: bytes.NewReader(data)}
}

func TestIngest_RejectsForgedFileKeepsOthers(t *testing.T) {
	store := &mocks.ObjectStore{}
	store.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "u1/") && strings.HasSuffix(k, ".png")
	}), "image/png", mock.Anything).Return(domain.StoredObject{URL: "https://cdn/a.png"}, nil).Once()
	store.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool {
		return strings.HasSuffix(k, ".pdf")
	}), "application/pdf", mock.Anything).Return(domain.StoredObject{}, nil).Once()
	store.On("PublicURL", mock.Anything).Return("https://cdn/b.pdf").Once()

	svc := usecase.NewUploadService(store, 1<<20, 10)
	out, err := svc.Ingest(context.Background(), "u1", []usecase.IncomingFile{
		file("page1.png", pngBytes),
		file("notes.jpg", []byte("just some text pretending to be a photo")),
		file("page2.pdf", pdfBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.pdf"}, out.URLs)
	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "notes.jpg: "), out.Errors[0])
	assert.Contains(t, out.Errors[0], "not an accepted file type")
	store.AssertExpectations(t)
}

func TestIngest_AllRejectedIsValidationError(t *testing.T) {
	store := &mocks.ObjectStore{}
	svc := usecase.NewUploadService(store, 16, 10)
	out, err := svc.Ingest(context.Background(), "u1", []usecase.IncomingFile{
		file("big.png", pngBytes),
		file("empty.pdf", nil),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Empty(t, out.URLs)
	vs := validation.Violations(err)
	require.Len(t, vs, 2)
	assert.Equal(t, "REJECTED", vs[0].Code)
	assert.Contains(t, vs[0].Message, "big.png")
	assert.Contains(t, vs[1].Message, "empty file")
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_UndeclaredOversizeIsCaught(t *testing.T) {
	svc := usecase.NewUploadService(&mocks.ObjectStore{}, 16, 10)
	f := usecase.IncomingFile{Name: "p.png", Body: bytes.NewReader(pngBytes)}
	_, err := svc.Ingest(context.Background(), "u1", []usecase.IncomingFile{f})
	require.Error(t, err)
	assert.Contains(t, validation.Violations(err)[0].Message, "larger than")
}

func TestIngest_FileCountLimits(t *testing.T) {
	svc := usecase.NewUploadService(&mocks.ObjectStore{}, 0, 2)
	_, err := svc.Ingest(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = svc.Ingest(context.Background(), "u1", []usecase.IncomingFile{file("a", pngBytes), file("b", pngBytes), file("c", pngBytes)})
	require.Error(t, err)
	assert.Equal(t, "MAX", validation.Violations(err)[0].Code)
}

func TestIngest_StoreFailureHidesDetail(t *testing.T) {
	store := &mocks.ObjectStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.StoredObject{}, errors.New("googleapi: 403 bucket secret-name"))
	svc := usecase.NewUploadService(store, 0, 0)
	out, err := svc.Ingest(context.Background(), "u1", []usecase.IncomingFile{file("a.png", pngBytes)})
	require.Error(t, err)
	assert.Equal(t, []string{"a.png: upload failed"}, out.Errors)
}
