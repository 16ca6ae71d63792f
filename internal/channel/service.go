package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cchking/ytbox/internal/crypto"
	"github.com/cchking/ytbox/internal/models"
)

var (
	// ErrInvalidInput 输入参数无效
	ErrInvalidInput = errors.New("invalid channel input")
)

// CreateInput 创建渠道的输入
type CreateInput struct {
	Name         string            `json:"name" binding:"required"`
	BaseURL      string            `json:"base_url" binding:"required"`
	APIKey       string            `json:"api_key" binding:"required"`
	DefaultModel string            `json:"default_model" binding:"required"`
	Models       []string          `json:"models"`
	RedirectMap  map[string]string `json:"redirect_mapping"`
	Weight       float64           `json:"weight"`
	Organization string            `json:"organization"`
}

// UpdateInput 更新渠道的输入，nil 字段表示不修改
type UpdateInput struct {
	Name         *string            `json:"name"`
	BaseURL      *string            `json:"base_url"`
	APIKey       *string            `json:"api_key"`
	DefaultModel *string            `json:"default_model"`
	Models       *[]string          `json:"models"`
	RedirectMap  *map[string]string `json:"redirect_mapping"`
	Weight       *float64           `json:"weight"`
	Organization *string            `json:"organization"`
}

// Service 渠道管理服务
// API 密钥落库前加密，出库转发时解密
type Service struct {
	repo          *Repository
	encryptionKey []byte
}

// NewService 创建渠道服务
func NewService(repo *Repository, encryptionKey []byte) *Service {
	return &Service{repo: repo, encryptionKey: encryptionKey}
}

// Create 创建渠道
func (s *Service) Create(input CreateInput) (*models.Channel, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	encryptedKey, err := crypto.EncryptString(input.APIKey, s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("加密 API 密钥失败: %w", err)
	}

	weight := input.Weight
	if weight <= 0 {
		weight = 1
	}

	ch := &models.Channel{
		Name:         strings.TrimSpace(input.Name),
		BaseURL:      normalizeBaseURL(input.BaseURL),
		APIKey:       encryptedKey,
		DefaultModel: input.DefaultModel,
		Models:       marshalModels(input.Models),
		RedirectMap:  marshalRedirects(input.RedirectMap),
		Weight:       weight,
		IsActive:     true,
		Organization: input.Organization,
	}

	if err := s.repo.Create(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Update 更新渠道
func (s *Service) Update(id uint, input UpdateInput) (*models.Channel, error) {
	ch, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		ch.Name = name
	}
	if input.BaseURL != nil {
		if strings.TrimSpace(*input.BaseURL) == "" {
			return nil, fmt.Errorf("%w: base_url cannot be empty", ErrInvalidInput)
		}
		ch.BaseURL = normalizeBaseURL(*input.BaseURL)
	}
	if input.APIKey != nil && *input.APIKey != "" {
		encryptedKey, err := crypto.EncryptString(*input.APIKey, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("加密 API 密钥失败: %w", err)
		}
		ch.APIKey = encryptedKey
	}
	if input.DefaultModel != nil {
		ch.DefaultModel = *input.DefaultModel
	}
	if input.Models != nil {
		ch.Models = marshalModels(*input.Models)
	}
	if input.RedirectMap != nil {
		ch.RedirectMap = marshalRedirects(*input.RedirectMap)
	}
	if input.Weight != nil {
		if *input.Weight <= 0 {
			return nil, fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
		}
		ch.Weight = *input.Weight
	}
	if input.Organization != nil {
		ch.Organization = *input.Organization
	}

	if err := s.repo.Update(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// Get 查询单个渠道
func (s *Service) Get(id uint) (*models.Channel, error) {
	return s.repo.FindByID(id)
}

// List 分页查询渠道列表
func (s *Service) List(page, pageSize int) ([]*models.Channel, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.FindAll(page, pageSize)
}

// Delete 删除渠道
func (s *Service) Delete(id uint) error {
	return s.repo.Delete(id)
}

// SetActive 启用/停用渠道
func (s *Service) SetActive(id uint, active bool) error {
	return s.repo.SetActive(id, active)
}

// DecryptAPIKey 解密渠道的 API 密钥，转发请求时调用
func (s *Service) DecryptAPIKey(ch *models.Channel) (string, error) {
	return crypto.DecryptString(ch.APIKey, s.encryptionKey)
}

// ReplaceBindings 重设模型绑定的渠道集合
func (s *Service) ReplaceBindings(modelID uint, channelIDs []uint) error {
	return s.repo.ReplaceBindings(modelID, channelIDs)
}

// CandidatesForModel 查询能承载指定模型的活跃渠道
// 有显式绑定时只在绑定渠道中选择；否则回退到全量扫描：
// 支持列表或重定向映射覆盖该模型名的活跃渠道
func (s *Service) CandidatesForModel(modelName string) ([]*models.Channel, error) {
	bound, err := s.repo.FindBoundChannels(modelName)
	if err != nil {
		return nil, err
	}
	if len(bound) > 0 {
		return bound, nil
	}

	active, err := s.repo.FindAllActive()
	if err != nil {
		return nil, err
	}

	var candidates []*models.Channel
	for _, ch := range active {
		if channelSupportsModel(ch, modelName) {
			candidates = append(candidates, ch)
		}
	}
	return candidates, nil
}

// channelSupportsModel 判断渠道能否承载指定模型
func channelSupportsModel(ch *models.Channel, modelName string) bool {
	for _, name := range ch.SupportedModels() {
		if name == modelName {
			return true
		}
	}
	if mapping := ch.RedirectMapping(); mapping != nil {
		if _, ok := mapping[modelName]; ok {
			return true
		}
	}
	return false
}

// validateCreate 校验创建输入
func validateCreate(input CreateInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.DefaultModel) == "" {
		return fmt.Errorf("%w: default_model is required", ErrInvalidInput)
	}
	if input.Weight < 0 {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidInput)
	}
	return nil
}

// normalizeBaseURL 去除末尾斜杠
func normalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}

// marshalModels 序列化模型列表
func marshalModels(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// marshalRedirects 序列化重定向映射
func marshalRedirects(mapping map[string]string) string {
	if len(mapping) == 0 {
		return "{}"
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return "{}"
	}
	return string(data)
}
