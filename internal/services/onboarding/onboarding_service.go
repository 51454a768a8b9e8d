package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/queue"
	"github.com/truckmitra/backend/internal/utils"
	"gorm.io/gorm"
)

const (
	otpValidity     = 5 * time.Minute
	otpMaxAttempts  = 3
	otpHourlyQuota  = 5
	otpThrottlePfx  = "otp:throttle:"
	otpThrottleSpan = time.Hour
)

var (
	// ErrPhoneTaken is returned when registering an already-registered phone
	ErrPhoneTaken = errors.New("phone number already registered")

	// ErrInvalidOTP is returned for a wrong, expired or exhausted code
	ErrInvalidOTP = errors.New("invalid or expired OTP")

	// ErrOTPThrottled is returned when a phone exceeds its hourly OTP quota
	ErrOTPThrottled = errors.New("too many OTP requests, try again later")

	// ErrInvalidCredentials is returned on a failed password login
	ErrInvalidCredentials = errors.New("invalid phone or password")
)

// Service handles user/vendor registration and phone verification.
// Codes are counter-based: each issuance advances the user's OTP counter so
// an old code can never be replayed.
type Service struct {
	db        *gorm.DB
	redis     *redis.Client
	jobQueue  *queue.Queue
	otpConfig utils.OTPConfig
}

// NewService creates an onboarding service
func NewService(db *gorm.DB, redisClient *redis.Client, jobQueue *queue.Queue) *Service {
	return &Service{
		db:        db,
		redis:     redisClient,
		jobQueue:  jobQueue,
		otpConfig: utils.DefaultOTPConfig(),
	}
}

// Register creates a new user and issues a registration OTP to the phone
func (s *Service) Register(name, phone, email, password string, role models.UserRole) (*models.User, error) {
	var existing models.User
	err := s.db.First(&existing, "phone = ?", phone).Error
	if err == nil {
		return nil, ErrPhoneTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking phone: %w", err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	secret, err := utils.GenerateOTPSecret(s.otpConfig)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Name:      name,
		Phone:     phone,
		Email:     email,
		Password:  hash,
		Role:      role,
		OTPSecret: secret,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	if err := s.RequestOTP(phone, "registration"); err != nil {
		// Registration succeeded; the user can re-request the code.
		return &user, nil
	}
	return &user, nil
}

// RequestOTP issues a one-time code to a registered phone. Throttled per
// phone via redis; the SMS itself goes out through the job queue.
func (s *Service) RequestOTP(phone, purpose string) error {
	ctx := context.Background()

	key := otpThrottlePfx + phone
	count, err := s.redis.Incr(ctx, key).Result()
	if err == nil {
		if count == 1 {
			s.redis.Expire(ctx, key, otpThrottleSpan)
		}
		if count > otpHourlyQuota {
			return ErrOTPThrottled
		}
	}
	// Redis unavailable: issue the code anyway, throttling is best-effort.

	var user models.User
	if err := s.db.First(&user, "phone = ?", phone).Error; err != nil {
		return fmt.Errorf("error finding user: %w", err)
	}

	user.OTPCounter++
	code, err := utils.GenerateOTPCode(s.otpConfig, user.OTPSecret, user.OTPCounter)
	if err != nil {
		return err
	}

	verification := models.OTPVerification{
		UserID:    user.ID,
		Phone:     phone,
		Purpose:   purpose,
		Counter:   user.OTPCounter,
		ExpiresAt: time.Now().Add(otpValidity),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("otp_counter", user.OTPCounter).Error; err != nil {
			return err
		}
		return tx.Create(&verification).Error
	})
	if err != nil {
		return fmt.Errorf("error recording OTP issuance: %w", err)
	}

	_, err = s.jobQueue.EnqueueJob(queue.JobTypeSendSMS, queue.SendSMSPayload{
		Phone:   phone,
		Message: fmt.Sprintf("%s is your TruckMitra verification code. Valid for 5 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("error queueing SMS: %w", err)
	}
	return nil
}

// VerifyOTP validates a submitted code and marks the phone verified
func (s *Service) VerifyOTP(phone, code string) (*models.User, error) {
	var verification models.OTPVerification
	err := s.db.
		Where("phone = ? AND verified_at IS NULL", phone).
		Order("created_at DESC").
		First(&verification).Error
	if err != nil {
		return nil, ErrInvalidOTP
	}

	if time.Now().After(verification.ExpiresAt) || verification.Attempts >= otpMaxAttempts {
		return nil, ErrInvalidOTP
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", verification.UserID).Error; err != nil {
		return nil, fmt.Errorf("error finding user: %w", err)
	}

	if !utils.ValidateOTPCode(s.otpConfig, code, user.OTPSecret, verification.Counter) {
		s.db.Model(&verification).Update("attempts", verification.Attempts+1)
		return nil, ErrInvalidOTP
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&verification).Update("verified_at", now).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update("phone_verified", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("error marking phone verified: %w", err)
	}

	user.PhoneVerified = true
	return &user, nil
}

// Login authenticates by phone and password and returns a token pair
func (s *Service) Login(phone, password string) (*models.User, utils.TokenPair, error) {
	var user models.User
	if err := s.db.First(&user, "phone = ?", phone).Error; err != nil {
		return nil, utils.TokenPair{}, ErrInvalidCredentials
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, utils.TokenPair{}, ErrInvalidCredentials
	}

	tokens, err := utils.GenerateTokenPair(user.ID, user.Phone, user.Role)
	if err != nil {
		return nil, utils.TokenPair{}, fmt.Errorf("error generating tokens: %w", err)
	}

	now := time.Now()
	s.db.Model(&user).Update("last_login", now)

	return &user, tokens, nil
}
