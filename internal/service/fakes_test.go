package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/pkg/tasks"
)

type memRepo struct {
	mu   sync.Mutex
	docs []*model.Document
	err  error
}

func (r *memRepo) Create(_ context.Context, doc *model.Document) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*model.Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRepo) FindAll(context.Context) ([]*model.Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Document(nil), r.docs...), nil
}

func (r *memRepo) FindByOrganization(_ context.Context, org uint) ([]*model.Document, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Document
	for _, d := range r.docs {
		if d.Organization() == org {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.docs {
		if d.ID == id {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memRepo) Count(ctx context.Context) (int64, error) {
	docs, err := r.FindAll(ctx)
	return int64(len(docs)), err
}

func (r *memRepo) CountByOrganization(ctx context.Context, org uint) (int64, error) {
	docs, err := r.FindByOrganization(ctx, org)
	return int64(len(docs)), err
}

type memObjects struct {
	objects map[string][]byte
	putErr  error
}

func (o *memObjects) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	if o.putErr != nil {
		return o.putErr
	}
	data, _ := io.ReadAll(r)
	o.objects[name] = data
	return nil
}

func (o *memObjects) Remove(_ context.Context, name string) error {
	delete(o.objects, name)
	return nil
}

func (o *memObjects) List(context.Context) ([]string, error) {
	names := make([]string, 0, len(o.objects))
	for name := range o.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) ExtractText(context.Context, io.Reader, string) (string, error) {
	return f.text, f.err
}

type fakePublisher struct {
	sent []tasks.IndexTask
	err  error
}

func (f *fakePublisher) SendIndexTask(_ context.Context, task tasks.IndexTask) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, task)
	return nil
}

type fakeIndexer struct {
	indexed []string
	fail    map[string]bool
}

func (f *fakeIndexer) IndexDocument(_ context.Context, doc *model.Document) error {
	if f.fail[doc.ID] {
		return errors.New("index unavailable")
	}
	f.indexed = append(f.indexed, doc.ID)
	return nil
}

type fakeChunkIndex struct {
	deleted []string
	stats   index.Stats
}

func (f *fakeChunkIndex) Delete(_ context.Context, id string) bool {
	f.deleted = append(f.deleted, id)
	return true
}

func (f *fakeChunkIndex) DocumentIDs(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeChunkIndex) Stats(context.Context) index.Stats {
	return f.stats
}
