package domain

// UserRole distinguishes regular users from platform administrators.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleUser, UserRoleAdmin:
		return true
	}
	return false
}

// DefaultUserRole is applied when a stored row carries no role.
const DefaultUserRole = UserRoleUser

// UserStatus represents the account lifecycle state.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

func (s UserStatus) String() string { return string(s) }

func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusSuspended, UserStatusDeleted:
		return true
	}
	return false
}

// DefaultUserStatus is applied when a stored row carries no status.
const DefaultUserStatus = UserStatusActive

// TxType classifies the direction of a blockchain transaction.
type TxType string

const (
	TxTypeDeposit    TxType = "deposit"
	TxTypeWithdrawal TxType = "withdrawal"
	TxTypeInternal   TxType = "internal"
)

func (t TxType) String() string { return string(t) }

func (t TxType) IsValid() bool {
	switch t {
	case TxTypeDeposit, TxTypeWithdrawal, TxTypeInternal:
		return true
	}
	return false
}

// DefaultTxType is applied when a stored row carries no type.
const DefaultTxType = TxTypeDeposit

// TxStatus represents the processing state of a transaction.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusCompleted TxStatus = "completed"
	TxStatusFailed    TxStatus = "failed"
)

func (s TxStatus) String() string { return string(s) }

func (s TxStatus) IsValid() bool {
	switch s {
	case TxStatusPending, TxStatusConfirmed, TxStatusCompleted, TxStatusFailed:
		return true
	}
	return false
}

// DefaultTxStatus is applied when a stored row carries no status.
const DefaultTxStatus = TxStatusPending

// Network identifies the blockchain a wallet or transaction belongs to.
type Network string

const (
	NetworkEthereum Network = "ethereum"
	NetworkBitcoin  Network = "bitcoin"
	NetworkPolygon  Network = "polygon"
	NetworkSolana   Network = "solana"
	NetworkTron     Network = "tron"
)

func (n Network) String() string { return string(n) }

func (n Network) IsValid() bool {
	switch n {
	case NetworkEthereum, NetworkBitcoin, NetworkPolygon, NetworkSolana, NetworkTron:
		return true
	}
	return false
}

// DefaultNetwork is applied when a stored row carries no network.
const DefaultNetwork = NetworkEthereum

// DeliveryStatus represents the delivery state of a webhook event.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	}
	return false
}

// DefaultDeliveryStatus is applied when a stored row carries no status.
const DefaultDeliveryStatus = DeliveryStatusPending
