package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"together.backend/internal/domain/entities"
	domainerrors "together.backend/internal/domain/errors"
	"together.backend/internal/domain/repositories"
	"together.backend/internal/metrics"
)

// ConnectionUsecase handles identity resolution and connection intents
type ConnectionUsecase struct {
	userRepo       repositories.UserRepository
	pendingRepo    repositories.PendingConnectionRepository
	optimisticRepo repositories.OptimisticConnectionRepository
	uow            repositories.UnitOfWork
}

// NewConnectionUsecase creates a new connection usecase
func NewConnectionUsecase(
	userRepo repositories.UserRepository,
	pendingRepo repositories.PendingConnectionRepository,
	optimisticRepo repositories.OptimisticConnectionRepository,
	uow repositories.UnitOfWork,
) *ConnectionUsecase {
	return &ConnectionUsecase{
		userRepo:       userRepo,
		pendingRepo:    pendingRepo,
		optimisticRepo: optimisticRepo,
		uow:            uow,
	}
}

// NormalizeAddress validates a wallet address and returns its canonical
// lowercase form. All storage and lookups use this form.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", domainerrors.ErrInvalidAddress
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// SubmitIntent registers a one-directional connection intent. Both
// identities are created on first sighting. At most MaxPendingPerPair
// unresolved intents may exist between one pair, counting both
// directions.
func (u *ConnectionUsecase) SubmitIntent(ctx context.Context, fromAddress, toAddress string) (*entities.PendingConnection, error) {
	from, err := NormalizeAddress(fromAddress)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid from address")
	}
	to, err := NormalizeAddress(toAddress)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid to address")
	}
	if from == to {
		return nil, domainerrors.NewAppError(400, "cannot connect with yourself", domainerrors.ErrSelfConnection)
	}

	var pending *entities.PendingConnection
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		fromUser, err := u.userRepo.Resolve(txCtx, from)
		if err != nil {
			return err
		}
		toUser, err := u.userRepo.Resolve(txCtx, to)
		if err != nil {
			return err
		}

		count, err := u.pendingRepo.CountUnresolvedBetween(txCtx, fromUser.ID, toUser.ID)
		if err != nil {
			return err
		}
		if count >= entities.MaxPendingPerPair {
			return domainerrors.TooManyRequests("too many pending requests between these users")
		}

		pending, err = u.pendingRepo.Create(txCtx, fromUser.ID, toUser.ID,
			time.Now().UTC().Add(entities.PendingConnectionTTL))
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IntentsCreatedTotal.Inc()
	return pending, nil
}

// GetPending lists the unexpired intents touching an address, split by
// direction. An unseen address simply has none.
func (u *ConnectionUsecase) GetPending(ctx context.Context, address string) ([]*entities.PendingIntentView, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid wallet address")
	}

	user, err := u.userRepo.GetByWalletAddress(ctx, normalized)
	if err == domainerrors.ErrNotFound {
		return []*entities.PendingIntentView{}, nil
	}
	if err != nil {
		return nil, err
	}

	outgoing, incoming, err := u.pendingRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.PendingIntentView, 0, len(outgoing)+len(incoming))
	for _, p := range outgoing {
		view, err := u.pendingView(ctx, p, p.ToUserID, "outgoing")
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	for _, p := range incoming {
		view, err := u.pendingView(ctx, p, p.FromUserID, "incoming")
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (u *ConnectionUsecase) pendingView(ctx context.Context, p *entities.PendingConnection, partnerID int64, direction string) (*entities.PendingIntentView, error) {
	partner, err := u.userRepo.GetByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	ttl := int64(time.Until(p.ExpiresAt).Seconds())
	if ttl < 0 {
		ttl = 0
	}
	return &entities.PendingIntentView{
		ID:             p.ID,
		PartnerAddress: partner.WalletAddress,
		Direction:      direction,
		CreatedAt:      p.CreatedAt,
		ExpiresAt:      p.ExpiresAt,
		TTLSeconds:     ttl,
	}, nil
}

// GetConnections lists the optimistic connections touching an address,
// confirmed and unconfirmed alike.
func (u *ConnectionUsecase) GetConnections(ctx context.Context, address string) ([]*entities.ConnectionView, error) {
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, domainerrors.BadRequest("invalid wallet address")
	}

	user, err := u.userRepo.GetByWalletAddress(ctx, normalized)
	if err == domainerrors.ErrNotFound {
		return []*entities.ConnectionView{}, nil
	}
	if err != nil {
		return nil, err
	}

	conns, err := u.optimisticRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	views := make([]*entities.ConnectionView, 0, len(conns))
	for _, c := range conns {
		partnerID := c.UserAID
		if partnerID == user.ID {
			partnerID = c.UserBID
		}
		partner, err := u.userRepo.GetByID(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		views = append(views, &entities.ConnectionView{
			ID:              c.ID,
			PartnerAddress:  partner.WalletAddress,
			Confirmed:       c.Confirmed,
			ConfirmedTxHash: c.ConfirmedTxHash,
			ConfirmedAt:     c.ConfirmedAt,
			CreatedAt:       c.CreatedAt,
		})
	}
	return views, nil
}
