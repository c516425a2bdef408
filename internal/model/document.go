// Package model 定义了文档、切块与检索结果的数据结构。
package model

import "time"

// DefaultOrganizationID 是历史文档（未记录组织）归属的组织。
const DefaultOrganizationID uint = 1

// Document 对应于数据库中的 documents 表，即文档注册表。
// 文档写入后不可修改，只能整体删除。
type Document struct {
	ID             string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Filename       string    `gorm:"type:varchar(255);not null" json:"filename"`
	ContentType    string    `gorm:"type:varchar(128)" json:"file_type"`
	FileSize       int64     `gorm:"not null;default:0" json:"file_size"`
	ObjectName     string    `gorm:"type:varchar(512)" json:"-"`
	OrganizationID uint      `gorm:"not null;index" json:"organization_id"`
	ExtractedText  string    `gorm:"type:longtext" json:"-"`
	UploadedAt     time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}

// Organization 返回文档所属组织，历史数据为 0 时视为默认组织。
func (d Document) Organization() uint {
	if d.OrganizationID == 0 {
		return DefaultOrganizationID
	}
	return d.OrganizationID
}

// ContentPreview 返回提取文本的前 200 个字符。
func (d Document) ContentPreview() string {
	runes := []rune(d.ExtractedText)
	if len(runes) > 200 {
		return string(runes[:200])
	}
	return d.ExtractedText
}
