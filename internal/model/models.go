package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/svirmi/gift-ledger/internal/role"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCanceled  Status = "Canceled"

	// StatusDelivered is accepted on input as an alias of StatusCompleted for
	// the delivery dimension. It is never stored.
	StatusDelivered Status = "Delivered"
)

type TransactionType string

const (
	TypeExchange TransactionType = "exchange"
	TypeGift     TransactionType = "gift"
	TypeSend     TransactionType = "send"
)

type UserType string

const (
	UserBlue  UserType = "Blue"
	UserPink  UserType = "Pink"
	UserBlack UserType = "Black"
)

type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Type      UserType   `json:"type"`
	RoleLevel role.Level `json:"roleLevel"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type Gift struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsHidden    bool            `json:"isHidden"`
	IsTradeable bool            `json:"isTradeable"`
}

type Transaction struct {
	ID             string          `json:"id"`
	GiftID         string          `json:"giftId"`
	FromUserID     string          `json:"fromUserId"`
	ToUserID       string          `json:"toUserId"`
	Participants   []string        `json:"participants"`
	Type           TransactionType `json:"type"`
	AcceptedStatus Status          `json:"acceptedStatus"`
	PaymentStatus  Status          `json:"paymentStatus"`
	DeliveryStatus Status          `json:"deliveryStatus"`
	Date           time.Time       `json:"date"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewTransaction builds a fresh ledger record with both status dimensions
// pending. Exchanges and sends are accepted on creation; gifts wait for the
// recipient.
func NewTransaction(id, giftID, fromUserID, toUserID string, typ TransactionType, now time.Time) Transaction {
	accepted := StatusCompleted
	if typ == TypeGift {
		accepted = StatusPending
	}
	return Transaction{
		ID:             id,
		GiftID:         giftID,
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
		Participants:   []string{fromUserID, toUserID},
		Type:           typ,
		AcceptedStatus: accepted,
		PaymentStatus:  StatusPending,
		DeliveryStatus: StatusPending,
		Date:           now,
		UpdatedAt:      now,
	}
}

// HasParticipant reports whether userID is one of the two parties.
func (t Transaction) HasParticipant(userID string) bool {
	return userID != "" && slices.Contains(t.Participants, userID)
}

// Clone returns a copy that does not share the participants slice.
func (t Transaction) Clone() Transaction {
	t.Participants = slices.Clone(t.Participants)
	return t
}

// TransactionFilter narrows a ledger query. Zero fields match everything.
type TransactionFilter struct {
	Participant string
	ToUserID    string
	Accepted    *bool
	Limit       int
}

// StatusDescriptor is one entry of a batch status update as sent on the wire.
type StatusDescriptor struct {
	ID             string `json:"id" validate:"required"`
	StatusType     string `json:"statusType" validate:"required"`
	NewStatus      Status `json:"newStatus" validate:"required"`
	PaymentStatus  Status `json:"paymentStatus,omitempty"`
	DeliveryStatus Status `json:"deliveryStatus,omitempty"`
}

// DataUpdateRequest is the body of PUT /data. It is either a batch status
// update (Action set) or a single-document update (DocID and Data set).
type DataUpdateRequest struct {
	Collection        string             `json:"collection" validate:"required"`
	Action            string             `json:"action,omitempty"`
	Transactions      []StatusDescriptor `json:"transactions,omitempty" validate:"omitempty,dive"`
	AuthorizingUserID string             `json:"authorizingUserId,omitempty"`
	DocID             string             `json:"docId,omitempty"`
	Data              map[string]any     `json:"data,omitempty"`
}

type DataDeleteRequest struct {
	Collection string `json:"collection" validate:"required"`
	DocID      string `json:"docId" validate:"required"`
}

type CreateTransactionRequest struct {
	GiftID   string          `json:"giftId" validate:"required"`
	ToUserID string          `json:"toUserId" validate:"required"`
	Type     TransactionType `json:"type" validate:"required,oneof=exchange gift send"`
}

type CreateUserRequest struct {
	Name      string   `json:"name" validate:"required"`
	Type      UserType `json:"type" validate:"required,oneof=Blue Pink Black"`
	RoleLevel int      `json:"roleLevel" validate:"gte=0,lte=2"`
}

type LoginRequest struct {
	UID string `json:"uid" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// TransactionView is a ledger record annotated with the operations the
// caller may still request on it.
type TransactionView struct {
	Transaction
	AvailableOperations []string `json:"availableOperations"`
}

type Obligation struct {
	UserID             string          `json:"userId"`
	Name               string          `json:"name"`
	PaymentsDue        int             `json:"paymentsDue"`
	AmountDue          decimal.Decimal `json:"amountDue"`
	DeliveriesAwaiting int             `json:"deliveriesAwaiting"`
}

type Dashboard struct {
	User          User          `json:"user"`
	Recent        []Transaction `json:"recent"`
	PendingGifts  []Transaction `json:"pendingGifts"`
	CatalogLength int           `json:"catalogLength"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
