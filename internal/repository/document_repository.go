// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"rag-chatbot-go/internal/model"
)

// ErrNotFound 表示记录不存在。
var ErrNotFound = errors.New("record not found")

// DocumentRepository 是文档注册表的数据访问接口。
type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id string) (*model.Document, error)
	FindAll(ctx context.Context) ([]*model.Document, error)
	FindByOrganization(ctx context.Context, organizationID uint) ([]*model.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByOrganization(ctx context.Context, organizationID uint) (int64, error)
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 写入一条文档记录。
func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindByID 根据 ID 查找文档，不存在时返回 ErrNotFound。
func (r *documentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindAll 按上传顺序返回全部文档。
func (r *documentRepository) FindAll(ctx context.Context) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.db.WithContext(ctx).Order("uploaded_at ASC, id ASC").Find(&docs).Error
	return docs, err
}

// FindByOrganization 按上传顺序返回组织可见的文档。
func (r *documentRepository) FindByOrganization(ctx context.Context, organizationID uint) ([]*model.Document, error) {
	var docs []*model.Document
	err := r.db.WithContext(ctx).
		Scopes(OrganizationScope(organizationID)).
		Order("uploaded_at ASC, id ASC").
		Find(&docs).Error
	return docs, err
}

// Delete 删除一条文档记录。
func (r *documentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error
}

// Count 返回文档总数。
func (r *documentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).Count(&total).Error
	return total, err
}

// CountByOrganization 返回组织可见的文档数。
func (r *documentRepository) CountByOrganization(ctx context.Context, organizationID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Document{}).Scopes(OrganizationScope(organizationID)).Count(&total).Error
	return total, err
}

// OrganizationScope 过滤出属于该组织的文档，默认组织同时包含 organization_id 为 0 的历史数据。
func OrganizationScope(organizationID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if organizationID == model.DefaultOrganizationID {
			return db.Where("organization_id IN ?", []uint{0, model.DefaultOrganizationID})
		}
		return db.Where("organization_id = ?", organizationID)
	}
}
