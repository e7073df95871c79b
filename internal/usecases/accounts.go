package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/entities"
	"github.com/AruzhanShinbayeva/crypto-exchange-backend/internal/shared"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/bcrypt"
)

type UsersRepository interface {
	InsertUser(ctx context.Context, user *entities.User, currencies []string, seedBalance decimal.Decimal) error
	FindUserByID(ctx context.Context, userID int64) (*entities.User, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	UpdatePasswordHash(ctx context.Context, userID int64, passwordHash string) error
}

// CreatedAccount is returned once at registration. The mnemonic phrase is
// never recoverable afterwards; only its hash is stored.
type CreatedAccount struct {
	Address        string
	MnemonicPhrase []string
}

// UserInfo is the queryable view of an account: its opaque address and its
// wallets.
type UserInfo struct {
	Address string
	Wallets []entities.Wallet
}

// AccountService is the account registry: it creates users with their
// seeded wallets, issues recovery mnemonics and verifies them for password
// recovery. User addresses are derived from a single master key, one child
// key per user id.
type AccountService struct {
	logger          *slog.Logger
	users           UsersRepository
	wallets         WalletsRepository
	transactor      Transactor
	masterKey       *bip32.Key
	mnemonicEntropy int
}

func NewAccountService(logger *slog.Logger, addressSeed string, mnemonicEntropy int, users UsersRepository, wallets WalletsRepository, transactor Transactor) (*AccountService, error) {
	seedBytes := bip39.NewSeed(addressSeed, "")
	masterKey, err := bip32.NewMasterKey(seedBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	return &AccountService{
		logger:          logger,
		users:           users,
		wallets:         wallets,
		transactor:      transactor,
		masterKey:       masterKey,
		mnemonicEntropy: mnemonicEntropy,
	}, nil
}

// CreateAccount registers a user and seeds one wallet per supported
// currency in a single transaction. Returns the derived address and the
// recovery mnemonic, which is shown to the user exactly once.
func (s *AccountService) CreateAccount(ctx context.Context, userID int64, password string) (*CreatedAccount, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	entropy, err := bip39.NewEntropy(s.mnemonicEntropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	mnemonicHash, err := hashMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("failed to hash mnemonic: %w", err)
	}

	address, err := s.deriveAddress(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive address: %w", err)
	}

	user := &entities.User{
		ID:           userID,
		Address:      address,
		PasswordHash: string(passwordHash),
		MnemonicHash: mnemonicHash,
	}

	err = s.users.InsertUser(ctx, user, shared.SupportedCurrencies(), shared.SeedBalance)
	if err != nil {
		return nil, err
	}

	return &CreatedAccount{
		Address:        address,
		MnemonicPhrase: strings.Fields(mnemonic),
	}, nil
}

// RecoverPassword replaces the user's password after verifying the
// recovery mnemonic against the stored hash.
func (s *AccountService) RecoverPassword(ctx context.Context, userID int64, mnemonic, newPassword string) error {
	return s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindUserByID(ctx, userID)
		if err != nil {
			return err
		}

		if !verifyMnemonic(mnemonic, user.MnemonicHash) {
			return entities.ErrInvalidMnemonic
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		return s.users.UpdatePasswordHash(ctx, userID, string(passwordHash))
	})
}

// UserExists reports whether a user id is registered.
func (s *AccountService) UserExists(ctx context.Context, userID int64) (bool, error) {
	return s.users.UserExists(ctx, userID)
}

// GetUserInfo returns the user's address and wallets.
func (s *AccountService) GetUserInfo(ctx context.Context, userID int64) (*UserInfo, error) {
	user, err := s.users.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	wallets, err := s.wallets.FindWalletsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &UserInfo{Address: user.Address, Wallets: wallets}, nil
}

// deriveAddress derives the user's opaque address from the registry master
// key. The child index is taken from the user id, folded into the
// non-hardened key range.
func (s *AccountService) deriveAddress(userID int64) (string, error) {
	index := uint32(uint64(userID) % 0x80000000)

	childKey, err := s.masterKey.NewChildKey(index)
	if err != nil {
		return "", err
	}

	privKey, err := crypto.ToECDSA(childKey.Key)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(privKey.PublicKey).Hex(), nil
}

// hashMnemonic bcrypt-hashes the phrase through a sha256 digest: bcrypt
// caps input at 72 bytes and a full phrase can exceed that.
func hashMnemonic(mnemonic string) (string, error) {
	digest := sha256.Sum256([]byte(mnemonic))
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(digest[:])), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyMnemonic(mnemonic, hash string) bool {
	digest := sha256.Sum256([]byte(mnemonic))
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(hex.EncodeToString(digest[:]))) == nil
}
