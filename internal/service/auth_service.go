package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/config"
	"github.com/qs3c/vpn_go_server/internal/model"
	"github.com/qs3c/vpn_go_server/internal/model/dto"
	"github.com/qs3c/vpn_go_server/internal/pkg/jwt"
	"github.com/qs3c/vpn_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vpn_go_server/internal/repository"
)

var (
	ErrUsernameExists     = errors.New("用户名已被使用")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrInvalidReferral    = errors.New("推荐码无效")
	ErrUserNotFound       = errors.New("用户不存在")
)

type AuthService struct {
	userRepo *repository.UserRepository
	notifier Notifier
	cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, notifier Notifier, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Register 用户注册。携带推荐码时绑定推荐人，
// 推荐人在被推荐人首次购买订阅时获得返利。
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	exists, err := s.userRepo.ExistsByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameExists
	}

	var referrerID *int64
	if req.ReferralCode != "" {
		referrer, err := s.userRepo.GetByReferralCode(req.ReferralCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidReferral
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	referralCode, err := generateRandomCode(12)
	if err != nil {
		return nil, err
	}

	passwordStr := string(hashedPassword)
	user := &model.User{
		Username:         req.Username,
		PasswordHash:     &passwordStr,
		ReferralCode:     &referralCode,
		ReferredByUserID: referrerID,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	// 推荐注册赠送试用期
	if referrerID != nil && s.cfg.Billing.ReferralTrialDays > 0 {
		until := time.Now().AddDate(0, 0, s.cfg.Billing.ReferralTrialDays)
		user.SubscriptionUntil = &until
		user.DeviceQuota = 1
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if referrerID != nil {
		s.rewardReferrer(*referrerID)
		if user.SubscriptionUntil != nil {
			s.notify(&pubsub.Notification{Kind: pubsub.KindTrialActivated, UserID: user.ID})
		}
	}

	return &dto.RegisterResponse{
		UserID:       user.ID,
		ReferralCode: referralCode,
	}, nil
}

// rewardReferrer 推荐人注册奖励入账并通知，尽力而为
func (s *AuthService) rewardReferrer(referrerID int64) {
	bonus := s.cfg.Billing.ReferralFixedBonus
	if bonus <= 0 {
		return
	}
	if err := s.userRepo.AddBalance(referrerID, bonus); err != nil {
		log.Printf("Failed to credit referrer %d: %v", referrerID, err)
		return
	}
	s.notify(&pubsub.Notification{Kind: pubsub.KindReferralCredit, UserID: referrerID, Amount: bonus})
}

func (s *AuthService) notify(msg *pubsub.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishNotification(context.Background(), msg); err != nil {
		log.Printf("Failed to publish %s notification for user %d: %v", msg.Kind, msg.UserID, err)
	}
}

// Login 用户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  buildUserInfo(user),
	}, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	return s.userRepo.GetByID(id)
}

// ReferralInfo 用户推荐计划信息
func (s *AuthService) ReferralInfo(userID int64) (*dto.ReferralInfoResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resp := &dto.ReferralInfoResponse{
		TrialDays:    s.cfg.Billing.ReferralTrialDays,
		BonusPercent: s.cfg.Billing.ReferralBonusPercent,
		FixedBonus:   s.cfg.Billing.ReferralFixedBonus,
	}
	if user.ReferralCode != nil {
		resp.ReferralCode = *user.ReferralCode
	}
	return resp, nil
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Balance:  user.Balance,
		IsAdmin:  user.IsAdmin,
	}

	if user.Email != nil {
		info.Email = *user.Email
	}
	if user.ReferralCode != nil {
		info.ReferralCode = *user.ReferralCode
	}

	return info
}

func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
