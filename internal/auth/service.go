package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/cchking/ytbox/internal/models"
	"github.com/cchking/ytbox/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken 令牌无效或已过期
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrUserBanned 用户已被封禁
	ErrUserBanned = errors.New("user is banned")
	// ErrUserInactive 用户已被停用
	ErrUserInactive = errors.New("user is inactive")
	// ErrUsernameTaken 用户名已被占用
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCode 验证码错误或已过期
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrEmailRequired 注册时邮箱不能为空
	ErrEmailRequired = errors.New("email is required")
)

const verificationCodeTTL = 10 * time.Minute

// Claims JWT 负载
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service 认证服务
// JWT 无状态会话，验证码走带过期时间的内存存储
type Service struct {
	db        *gorm.DB
	secret    []byte
	tokenTTL  time.Duration
	codeStore store.ExpiringStore
}

// NewService 创建认证服务
func NewService(db *gorm.DB, secret string, tokenTTL time.Duration, codeStore store.ExpiringStore) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		db:        db,
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		codeStore: codeStore,
	}
}

// ==================== 注册与登录 ====================

// IssueVerificationCode 生成并暂存邮箱验证码
// 返回验证码供发送渠道使用
func (s *Service) IssueVerificationCode(email string) (string, error) {
	code, err := randomCode(6)
	if err != nil {
		return "", err
	}
	s.codeStore.Put(codeKey(email), code, verificationCodeTTL)
	return code, nil
}

// Register 注册新用户
// 邮箱验证码一次有效，校验通过即销毁
func (s *Service) Register(username, email, password, code string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	// 邮箱列有唯一索引，空串也会参与唯一性比较，必须拦在入库之前
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	stored, ok := s.codeStore.Get(codeKey(email))
	if !ok || stored != code {
		return nil, ErrInvalidCode
	}
	s.codeStore.Delete(codeKey(email))

	var count int64
	if err := s.db.Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("哈希密码失败: %w", err)
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
		Role:           models.RoleUser,
		IsActive:       true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Login 校验密码并签发令牌
func (s *Service) Login(username, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if user.IsBanned {
		return "", nil, ErrUserBanned
	}
	if !user.IsActive {
		return "", nil, ErrUserInactive
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

// ==================== 令牌 ====================

// GenerateToken 为用户签发 JWT
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken 解析并校验 JWT
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser 根据令牌负载加载用户并检查账号状态
func (s *Service) CurrentUser(claims *Claims) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, claims.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if user.IsBanned {
		return nil, ErrUserBanned
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return &user, nil
}

// ==================== 辅助函数 ====================

func codeKey(email string) string {
	return "verify:" + strings.ToLower(strings.TrimSpace(email))
}

// randomCode 生成指定位数的数字验证码
func randomCode(digits int) (string, error) {
	var sb strings.Builder
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%d", n.Int64())
	}
	return sb.String(), nil
}
