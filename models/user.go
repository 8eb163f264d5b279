package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
	"gorm.io/gorm"
)

const DefaultPasswordExpireDays = 90

type User struct {
	ID                 int       `gorm:"primary_key" json:"id"`
	Name               string    `gorm:"size:100;not null;unique" json:"name"`
	Password           string    `gorm:"column:pwd;size:255;not null" json:"-"`
	PasswordChangedAt  time.Time `gorm:"column:pwd_changed_at" json:"pwd_changed_at"`
	PasswordExpireDays int       `gorm:"column:pwd_expire_days;not null" json:"pwd_expire_days"`
	IsActive           *bool     `gorm:"not null" json:"is_active"`
	TenantCode         string    `gorm:"column:comp_cd;size:20;index" json:"comp_cd"`
	CreatedAt          time.Time `gorm:"column:crt_dt;autoCreateTime" json:"crt_dt"`
	UpdatedAt          time.Time `gorm:"column:updt_dt;autoUpdateTime" json:"updt_dt"`
}

type NewUser struct {
	Name               string `json:"name" binding:"required"`
	Password           string `json:"pwd" binding:"required"`
	PasswordExpireDays int    `json:"pwd_expire_days" binding:"gte=0"`
	IsActive           *bool  `json:"is_active"`
	TenantCode         string `json:"comp_cd"`
}

// UpdateUser changes only the fields that are set.
type UpdateUser struct {
	Name               *string `json:"name" binding:"omitempty,min=1"`
	Password           *string `json:"pwd" binding:"omitempty,min=1"`
	PasswordExpireDays *int    `json:"pwd_expire_days" binding:"omitempty,gte=0"`
	IsActive           *bool   `json:"is_active"`
	TenantCode         *string `json:"comp_cd"`
}

type LoginInfo struct {
	AccessToken     string `json:"access_token"`
	TokenType       string `json:"token_type"`
	Name            string `json:"name"`
	TenantCode      string `json:"comp_cd,omitempty"`
	ExpiresIn       int64  `json:"expires_in"`
	PasswordExpired bool   `json:"pwd_expired"`
}

/*
sessions:
	Token:$jti -> username
	Tokens:$username -> set of jti
*/

type UserService struct {
	db    *gorm.DB
	redis *config.Redis
}

func NewUserService(db *gorm.DB, redis *config.Redis) *UserService {
	return &UserService{db: db, redis: redis}
}

func sessionKey(tokenId string) string { return "Token:" + tokenId }

func sessionSetKey(username string) string { return "Tokens:" + username }

// PasswordExpired reports whether the password is older than its expiry window. Zero days never expires.
func (user *User) PasswordExpired(now time.Time) bool {
	if user.PasswordExpireDays <= 0 || user.PasswordChangedAt.IsZero() {
		return false
	}
	return now.After(user.PasswordChangedAt.AddDate(0, 0, user.PasswordExpireDays))
}

// Login verifies the credentials and opens a session.
func (s *UserService) Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	var user User
	err := s.db.WithContext(ctx).Model(&User{}).Where("name = ?", strings.TrimSpace(username)).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorInvalidCredentials
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		return nil, utils.ErrorInvalidCredentials
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, utils.ErrorUserDisabled
	}

	token, tokenId, err := utils.JwtGenerate(user.Name, user.TenantCode)
	if err != nil {
		return nil, err
	}
	lifespan := utils.TokenLifespan()

	// add new token to the user's tokens set
	if err := s.redis.AddSet(ctx, sessionSetKey(user.Name), tokenId); err != nil {
		return nil, err
	}
	if err := s.redis.SetValue(ctx, sessionKey(tokenId), user.Name, lifespan); err != nil {
		return nil, err
	}

	return &LoginInfo{
		AccessToken:     token,
		TokenType:       "bearer",
		Name:            user.Name,
		TenantCode:      user.TenantCode,
		ExpiresIn:       int64(lifespan.Seconds()),
		PasswordExpired: user.PasswordExpired(time.Now()),
	}, nil
}

// Logout destroys the current session.
func (s *UserService) Logout(ctx context.Context) error {
	tokenId, ok := utils.GetTokenFromContext(ctx)
	if !ok || tokenId == "" {
		return errors.New("token is required")
	}
	if err := s.redis.RemoveKey(ctx, sessionKey(tokenId)); err != nil {
		return err
	}
	// remove current token from tokens list
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("user not found")
	}
	return s.redis.RemoveSetMember(ctx, sessionSetKey(username), tokenId)
}

func (s *UserService) DestroyAllSessions(ctx context.Context, username string) error {
	allTokens, err := s.redis.SetMembers(ctx, sessionSetKey(username))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(allTokens)+1)
	for _, tokenId := range allTokens {
		keys = append(keys, sessionKey(tokenId))
	}
	keys = append(keys, sessionSetKey(username))
	return s.redis.RemoveKey(ctx, keys...)
}

func (s *UserService) Create(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	expireDays := input.PasswordExpireDays
	if expireDays == 0 {
		expireDays = DefaultPasswordExpireDays
	}
	isActive := input.IsActive
	if isActive == nil {
		isActive = utils.NewTrue()
	}
	user := User{
		Name:               strings.TrimSpace(input.Name),
		Password:           string(hashed),
		PasswordChangedAt:  time.Now().UTC(),
		PasswordExpireDays: expireDays,
		IsActive:           isActive,
		TenantCode:         input.TenantCode,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: user %s already exists", utils.ErrorDuplicateKey, user.Name)
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) List(ctx context.Context) ([]*User, error) {
	users := make([]*User, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id int) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", utils.ErrorRecordNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) GetByName(ctx context.Context, name string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("name = ?", name).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %s", utils.ErrorRecordNotFound, name)
		}
		return nil, err
	}
	return &user, nil
}

// Update applies input to user id. A new password is re-hashed and ends every session of the user.
func (s *UserService) Update(ctx context.Context, id int, input *UpdateUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	var (
		user            User
		oldName         string
		passwordChanged bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", utils.ErrorRecordNotFound, id)
			}
			return err
		}
		oldName = user.Name

		updates := map[string]interface{}{}
		if input.Name != nil {
			user.Name = strings.TrimSpace(*input.Name)
			updates["name"] = user.Name
		}
		if input.Password != nil {
			hashed, err := utils.HashPassword(*input.Password)
			if err != nil {
				return err
			}
			user.Password = string(hashed)
			user.PasswordChangedAt = time.Now().UTC()
			updates["pwd"] = user.Password
			updates["pwd_changed_at"] = user.PasswordChangedAt
			passwordChanged = true
		}
		if input.PasswordExpireDays != nil {
			user.PasswordExpireDays = *input.PasswordExpireDays
			updates["pwd_expire_days"] = user.PasswordExpireDays
		}
		if input.IsActive != nil {
			user.IsActive = input.IsActive
			updates["is_active"] = *input.IsActive
		}
		if input.TenantCode != nil {
			user.TenantCode = *input.TenantCode
			updates["comp_cd"] = user.TenantCode
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&User{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: user name taken", utils.ErrorDuplicateKey)
		}
		return nil, err
	}

	if passwordChanged || oldName != user.Name || (input.IsActive != nil && !*input.IsActive) {
		if err := s.DestroyAllSessions(ctx, oldName); err != nil {
			config.LogError(config.GetLogger(), "user.go", "Update", "destroy sessions", oldName, err)
		}
	}
	return &user, nil
}

func (s *UserService) Delete(ctx context.Context, id int) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: user %d", utils.ErrorRecordNotFound, id)
			}
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return nil, err
	}
	if err := s.DestroyAllSessions(ctx, user.Name); err != nil {
		config.LogError(config.GetLogger(), "user.go", "Delete", "destroy sessions", user.Name, err)
	}
	return &user, nil
}

// UpsertAdmin creates or resets a tenant-less, active user with the given password.
func (s *UserService) UpsertAdmin(ctx context.Context, name string, password string) (*User, bool, error) {
	existing, err := s.GetByName(ctx, name)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, false, err
	}
	if existing == nil {
		user, err := s.Create(ctx, &NewUser{Name: name, Password: password, IsActive: utils.NewTrue()})
		return user, true, err
	}
	empty := ""
	user, err := s.Update(ctx, existing.ID, &UpdateUser{Password: &password, IsActive: utils.NewTrue(), TenantCode: &empty})
	return user, false, err
}
