package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/imimarket/imimarket-backend/internal/ledger"
	"github.com/imimarket/imimarket-backend/internal/mlm"
	"github.com/imimarket/imimarket-backend/internal/notifications"
	"github.com/imimarket/imimarket-backend/internal/transactions"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
	"github.com/imimarket/imimarket-backend/pkg/metrics"
)

// txRunner runs a closure inside one database transaction.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the wallet engine. Every mutation runs inside a single
// database transaction covering the balance adjustments, the transaction
// log entries and the notification rows; either everything lands or
// nothing does. Streamed delivery of notifications happens after commit.
type Service interface {
	Balances(ctx context.Context, userID uuid.UUID) ([]models.WalletBalance, error)
	Deposit(ctx context.Context, input DepositInput) (*models.WalletBalance, error)
	Withdraw(ctx context.Context, input WithdrawInput) (*models.WalletBalance, error)
	Convert(ctx context.Context, input ConvertInput) (*ConvertResult, error)
	// Purchase debits the buyer and fans referral rewards out to the
	// buyer's upline in the same transaction.
	Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error)
	// PurchaseInTx performs the purchase fan-out inside the caller's
	// transaction. Returned notifications are persisted but not delivered;
	// the caller delivers them after its commit.
	PurchaseInTx(ctx context.Context, tx *gorm.DB, input PurchaseInput) (*PurchaseResult, []*models.Notification, error)
	TransferByCard(ctx context.Context, input TransferInput) (*TransferResult, error)
}

type DepositInput struct {
	UserID   uuid.UUID
	Currency enums.Currency
	Amount   decimal.Decimal
}

type WithdrawInput struct {
	UserID   uuid.UUID
	Currency enums.Currency
	Amount   decimal.Decimal
}

type ConvertInput struct {
	UserID uuid.UUID
	From   enums.Currency
	To     enums.Currency
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

type ConvertResult struct {
	Debited  decimal.Decimal
	Credited decimal.Decimal
	From     *models.WalletBalance
	To       *models.WalletBalance
}

type PurchaseInput struct {
	UserID      uuid.UUID
	Currency    enums.Currency
	Amount      decimal.Decimal
	Description string
}

type PurchaseResult struct {
	Balance     *models.WalletBalance
	Transaction *models.Transaction
	RewardsPaid int
}

type TransferInput struct {
	UserID      uuid.UUID
	CardNumber  string
	Currency    enums.Currency
	Amount      decimal.Decimal
	Description string
}

type TransferResult struct {
	Sender    *models.WalletBalance
	Recipient *models.WalletBalance
	Currency  enums.Currency
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Runner        txRunner
	Balances      ledger.Repository
	Transactions  transactions.Service
	Notifications notifications.Service
	Rewards       *mlm.Calculator
	Metrics       *metrics.WalletMetrics
	Logger        *logger.Logger
}

type service struct {
	runner  txRunner
	ledger  ledger.Repository
	txlog   transactions.Service
	notify  notifications.Service
	rewards *mlm.Calculator
	metrics *metrics.WalletMetrics
	logg    *logger.Logger
}

// NewService wires the wallet engine. Metrics may be nil in tests.
func NewService(deps Deps) (Service, error) {
	if deps.Runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if deps.Balances == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if deps.Transactions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transactions service required")
	}
	if deps.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if deps.Rewards == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "reward calculator required")
	}
	if deps.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		runner:  deps.Runner,
		ledger:  deps.Balances,
		txlog:   deps.Transactions,
		notify:  deps.Notifications,
		rewards: deps.Rewards,
		metrics: deps.Metrics,
		logg:    deps.Logger,
	}, nil
}

func (s *service) Balances(ctx context.Context, userID uuid.UUID) ([]models.WalletBalance, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list balances")
	}
	return rows, nil
}

func (s *service) Deposit(ctx context.Context, input DepositInput) (*models.WalletBalance, error) {
	if err := validateMovement(input.UserID, input.Currency, input.Amount); err != nil {
		return nil, err
	}

	var (
		balance *models.WalletBalance
		pending []*models.Notification
	)
	err := s.instrument(ctx, "deposit", func() error {
		return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			updated, err := s.ledger.WithTx(tx).Adjust(ctx, input.UserID, input.Currency, input.Amount)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
			}
			balance = updated

			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   input.UserID,
				Currency: input.Currency,
				Amount:   input.Amount,
				Type:     enums.TransactionTypeDeposit,
			}); err != nil {
				return err
			}

			note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
				UserID:      &input.UserID,
				Category:    enums.NotificationCategoryWallet,
				Subcategory: "deposit",
				Message:     fmt.Sprintf("Deposited %s %s", input.Amount.StringFixed(2), input.Currency),
			})
			if err != nil {
				return err
			}
			pending = append(pending, note)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deliverAll(ctx, pending)
	return balance, nil
}

func (s *service) Withdraw(ctx context.Context, input WithdrawInput) (*models.WalletBalance, error) {
	if err := validateMovement(input.UserID, input.Currency, input.Amount); err != nil {
		return nil, err
	}

	var (
		balance *models.WalletBalance
		pending []*models.Notification
	)
	err := s.instrument(ctx, "withdraw", func() error {
		return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.ledger.WithTx(tx)
			if err := s.requireFunds(ctx, repo, input.UserID, input.Currency, input.Amount); err != nil {
				return err
			}

			updated, err := repo.Adjust(ctx, input.UserID, input.Currency, input.Amount.Neg())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit balance")
			}
			balance = updated

			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   input.UserID,
				Currency: input.Currency,
				Amount:   input.Amount.Neg(),
				Type:     enums.TransactionTypeWithdraw,
			}); err != nil {
				return err
			}

			note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
				UserID:      &input.UserID,
				Category:    enums.NotificationCategoryWallet,
				Subcategory: "withdraw",
				Message:     fmt.Sprintf("Withdrew %s %s", input.Amount.StringFixed(2), input.Currency),
			})
			if err != nil {
				return err
			}
			pending = append(pending, note)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deliverAll(ctx, pending)
	return balance, nil
}

func (s *service) Convert(ctx context.Context, input ConvertInput) (*ConvertResult, error) {
	if err := validateMovement(input.UserID, input.From, input.Amount); err != nil {
		return nil, err
	}
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target currency")
	}
	if input.From == input.To {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source and target currency must differ")
	}
	if !input.Rate.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate must be positive")
	}

	credited := input.Amount.Mul(input.Rate).Round(2)
	if !credited.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "converted amount rounds to zero")
	}

	var (
		result  ConvertResult
		pending []*models.Notification
	)
	err := s.instrument(ctx, "convert", func() error {
		return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.ledger.WithTx(tx)
			if err := s.requireFunds(ctx, repo, input.UserID, input.From, input.Amount); err != nil {
				return err
			}

			from, err := repo.Adjust(ctx, input.UserID, input.From, input.Amount.Neg())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit source balance")
			}
			to, err := repo.Adjust(ctx, input.UserID, input.To, credited)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit target balance")
			}

			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   input.UserID,
				Currency: input.From,
				Amount:   input.Amount.Neg(),
				Type:     enums.TransactionTypeConvertOut,
				Metadata: transactions.ConvertMetadata{CounterCurrency: input.To, Rate: input.Rate},
			}); err != nil {
				return err
			}
			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   input.UserID,
				Currency: input.To,
				Amount:   credited,
				Type:     enums.TransactionTypeConvertIn,
				Metadata: transactions.ConvertMetadata{CounterCurrency: input.From, Rate: input.Rate},
			}); err != nil {
				return err
			}

			note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
				UserID:      &input.UserID,
				Category:    enums.NotificationCategoryWallet,
				Subcategory: "convert",
				Message: fmt.Sprintf("Converted %s %s to %s %s",
					input.Amount.StringFixed(2), input.From, credited.StringFixed(2), input.To),
			})
			if err != nil {
				return err
			}
			pending = append(pending, note)

			result = ConvertResult{
				Debited:  input.Amount.Round(2),
				Credited: credited,
				From:     from,
				To:       to,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deliverAll(ctx, pending)
	return &result, nil
}

func (s *service) Purchase(ctx context.Context, input PurchaseInput) (*PurchaseResult, error) {
	if err := validateMovement(input.UserID, input.Currency, input.Amount); err != nil {
		return nil, err
	}

	var (
		result  *PurchaseResult
		pending []*models.Notification
	)
	err := s.instrument(ctx, "purchase", func() error {
		return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			res, notes, err := s.PurchaseInTx(ctx, tx, input)
			if err != nil {
				return err
			}
			result = res
			pending = notes
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.AddRewards(result.RewardsPaid)
	s.deliverAll(ctx, pending)
	return result, nil
}

func (s *service) PurchaseInTx(ctx context.Context, tx *gorm.DB, input PurchaseInput) (*PurchaseResult, []*models.Notification, error) {
	if err := validateMovement(input.UserID, input.Currency, input.Amount); err != nil {
		return nil, nil, err
	}

	repo := s.ledger.WithTx(tx)
	if err := s.requireFunds(ctx, repo, input.UserID, input.Currency, input.Amount); err != nil {
		return nil, nil, err
	}

	balance, err := repo.Adjust(ctx, input.UserID, input.Currency, input.Amount.Neg())
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit buyer balance")
	}

	purchase, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
		UserID:   input.UserID,
		Currency: input.Currency,
		Amount:   input.Amount.Neg(),
		Type:     enums.TransactionTypePurchase,
		Metadata: transactions.PurchaseMetadata{Description: input.Description},
	})
	if err != nil {
		return nil, nil, err
	}

	var pending []*models.Notification
	rewards, err := s.rewards.CalculateRewards(ctx, input.UserID, input.Amount)
	if err != nil {
		return nil, nil, err
	}
	for _, reward := range rewards {
		beneficiaryID := reward.User.ID
		if _, err := repo.Adjust(ctx, beneficiaryID, input.Currency, reward.Amount); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit reward balance")
		}
		if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
			UserID:   beneficiaryID,
			Currency: input.Currency,
			Amount:   reward.Amount,
			Type:     enums.TransactionTypeMLMReward,
			Metadata: transactions.MLMRewardMetadata{Level: reward.Level, SourceUserID: input.UserID},
		}); err != nil {
			return nil, nil, err
		}
		note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
			UserID:      &beneficiaryID,
			Category:    enums.NotificationCategoryMLM,
			Subcategory: "reward",
			Message: fmt.Sprintf("Referral reward: %s %s from a level %d purchase",
				reward.Amount.StringFixed(2), input.Currency, reward.Level),
			Data: transactions.MLMRewardMetadata{Level: reward.Level, SourceUserID: input.UserID},
		})
		if err != nil {
			return nil, nil, err
		}
		pending = append(pending, note)
	}

	note, err := s.notify.Create(ctx, tx, notifications.CreateInput{
		UserID:      &input.UserID,
		Category:    enums.NotificationCategoryWallet,
		Subcategory: "purchase",
		Message:     fmt.Sprintf("Purchase of %s %s completed", input.Amount.StringFixed(2), input.Currency),
	})
	if err != nil {
		return nil, nil, err
	}
	pending = append(pending, note)

	return &PurchaseResult{
		Balance:     balance,
		Transaction: purchase,
		RewardsPaid: len(rewards),
	}, pending, nil
}

func (s *service) TransferByCard(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if err := validateMovement(input.UserID, input.Currency, input.Amount); err != nil {
		return nil, err
	}
	cardNumber := ledger.NormalizeCardNumber(input.CardNumber)
	if cardNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card number required")
	}

	var (
		result  TransferResult
		pending []*models.Notification
	)
	err := s.instrument(ctx, "transfer", func() error {
		return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.ledger.WithTx(tx)

			target, err := repo.FindByCardNumber(ctx, cardNumber)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve card number")
			}
			if target == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no account matches that card number")
			}
			if target.UserID == input.UserID {
				return pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to your own card")
			}
			if target.Currency != input.Currency {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("card is denominated in %s", target.Currency))
			}

			currency := input.Currency
			if err := s.requireFunds(ctx, repo, input.UserID, currency, input.Amount); err != nil {
				return err
			}

			sender, err := repo.Adjust(ctx, input.UserID, currency, input.Amount.Neg())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit sender balance")
			}
			recipient, err := repo.Adjust(ctx, target.UserID, currency, input.Amount)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit recipient balance")
			}

			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   input.UserID,
				Currency: currency,
				Amount:   input.Amount.Neg(),
				Type:     enums.TransactionTypeTransferOut,
				Metadata: transactions.TransferMetadata{CounterpartyID: target.UserID, CardNumber: cardNumber, Description: input.Description},
			}); err != nil {
				return err
			}
			if _, err := s.txlog.Record(ctx, tx, transactions.RecordInput{
				UserID:   target.UserID,
				Currency: currency,
				Amount:   input.Amount,
				Type:     enums.TransactionTypeTransferIn,
				Metadata: transactions.TransferMetadata{CounterpartyID: input.UserID, CardNumber: cardNumber, Description: input.Description},
			}); err != nil {
				return err
			}

			senderNote, err := s.notify.Create(ctx, tx, notifications.CreateInput{
				UserID:      &input.UserID,
				Category:    enums.NotificationCategoryWallet,
				Subcategory: "transfer_out",
				Message:     fmt.Sprintf("Sent %s %s to card %s", input.Amount.StringFixed(2), currency, cardNumber),
			})
			if err != nil {
				return err
			}
			recipientID := target.UserID
			recipientNote, err := s.notify.Create(ctx, tx, notifications.CreateInput{
				UserID:      &recipientID,
				Category:    enums.NotificationCategoryWallet,
				Subcategory: "transfer_in",
				Message:     fmt.Sprintf("Received %s %s by card transfer", input.Amount.StringFixed(2), currency),
			})
			if err != nil {
				return err
			}
			pending = append(pending, senderNote, recipientNote)

			result = TransferResult{Sender: sender, Recipient: recipient, Currency: currency}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.deliverAll(ctx, pending)
	return &result, nil
}

// requireFunds enforces the non-negative balance invariant up front: the
// account row must exist and hold at least amount.
func (s *service) requireFunds(ctx context.Context, repo ledger.Repository, userID uuid.UUID, currency enums.Currency, amount decimal.Decimal) error {
	row, err := repo.Get(ctx, userID, currency)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load balance")
	}
	if row == nil || row.Balance.LessThan(amount) {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("insufficient %s funds", currency))
	}
	return nil
}

func (s *service) instrument(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveDuration(operation, time.Since(start))
	if err != nil {
		s.metrics.IncFailure(operation)
		if !isClientError(err) {
			s.logg.Error(ctx, "wallet "+operation+" failed", err)
		}
		return err
	}
	s.metrics.IncSuccess(operation)
	return nil
}

func (s *service) deliverAll(ctx context.Context, pending []*models.Notification) {
	for _, note := range pending {
		s.notify.Deliver(ctx, note)
	}
}

func isClientError(err error) bool {
	typed := pkgerrors.As(err)
	if typed == nil {
		return false
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeInsufficientFunds, pkgerrors.CodeNotFound:
		return true
	}
	return false
}

func validateMovement(userID uuid.UUID, currency enums.Currency, amount decimal.Decimal) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !currency.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}
