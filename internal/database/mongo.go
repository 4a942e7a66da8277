package database

import (
	"context"
	"errors"
	"fmt"
	"gatepass/entity"
	"gatepass/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

const (
	collectionTickets  = "tickets"
	collectionUsers    = "users"
	collectionActivity = "activity_log"
)

// MongoDB is the single source of truth for ticket lifecycle state.
// Every mutating ticket path funnels through transitionTicket, a
// findOneAndUpdate compare-and-swap on the status field; there is no
// read-modify-write anywhere. Uniqueness of code and token is enforced by
// unique indexes, not by trusting the generator.
type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) tickets(connection *mongo.Client) *mongo.Collection {
	return connection.Database(m.database).Collection(collectionTickets)
}

func (m *MongoDB) users(connection *mongo.Client) *mongo.Collection {
	return connection.Database(m.database).Collection(collectionUsers)
}

func (m *MongoDB) activity(connection *mongo.Client) *mongo.Collection {
	return connection.Database(m.database).Collection(collectionActivity)
}

// EnsureIndexes creates the indexes the lifecycle depends on. The unique
// indexes on code and token are mandatory: duplicate identifiers must fail
// at the storage layer, whatever the generator produced.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	// The email index is unique and sparse: only assigned tickets carry the
	// field, so the one-ticket-per-email rule is enforced by the storage
	// layer even when two allocations race past the application check.
	unique := options.Index().SetUnique(true)
	_, err = m.tickets(connection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("mongodb ticket indexes: %w", err)
	}

	_, err = m.users(connection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("mongodb user indexes: %w", err)
	}

	_, err = m.activity(connection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongodb activity indexes: %w", err)
	}
	return nil
}

// InsertTickets inserts the whole batch; a code or token collision surfaces
// as entity.ErrDuplicateKey so the caller can regenerate and retry.
func (m *MongoDB) InsertTickets(ctx context.Context, tickets []*entity.Ticket) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	docs := make([]interface{}, len(tickets))
	for i, t := range tickets {
		docs[i] = t
	}
	_, err = m.tickets(connection).InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("mongodb insert tickets: %w", err)
	}
	return nil
}

// DeleteAllTickets wipes the pool. Only the initializer calls this, and only
// to clear a partially-inserted batch before a retry.
func (m *MongoDB) DeleteAllTickets(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.tickets(connection).DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("mongodb delete tickets: %w", err)
	}
	return nil
}

func (m *MongoDB) CountTickets(ctx context.Context) (int64, error) {
	return m.countTickets(ctx, bson.D{})
}

func (m *MongoDB) CountTicketsInState(ctx context.Context, state entity.TicketState) (int64, error) {
	return m.countTickets(ctx, bson.D{{Key: "status", Value: state}})
}

// CountIssuedBy counts live assignments made by the actor.
func (m *MongoDB) CountIssuedBy(ctx context.Context, actor string) (int64, error) {
	return m.countTickets(ctx, bson.D{
		{Key: "issued_by", Value: actor},
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{entity.StateSent, entity.StateUsed}}}},
	})
}

// CountRedeemedBy counts tickets the actor scanned at the gate.
func (m *MongoDB) CountRedeemedBy(ctx context.Context, actor string) (int64, error) {
	return m.countTickets(ctx, bson.D{{Key: "used_by", Value: actor}})
}

func (m *MongoDB) countTickets(ctx context.Context, filter bson.D) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	count, err := m.tickets(connection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongodb count tickets: %w", err)
	}
	return count, nil
}

// FindTicketByEmail returns the ticket holding a live assignment for the
// address, or nil when the email has no ticket in the given states.
func (m *MongoDB) FindTicketByEmail(ctx context.Context, email string, states []entity.TicketState) (*entity.Ticket, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{
		{Key: "email", Value: email},
		{Key: "status", Value: bson.D{{Key: "$in", Value: states}}},
	}
	var ticket entity.Ticket
	err = m.tickets(connection).FindOne(ctx, filter).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find by email: %w", err)
	}
	return &ticket, nil
}

// FindTicketByToken resolves a scanned redemption token.
func (m *MongoDB) FindTicketByToken(ctx context.Context, token string) (*entity.Ticket, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var ticket entity.Ticket
	err = m.tickets(connection).FindOne(ctx, bson.D{{Key: "token", Value: token}}).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find by token: %w", err)
	}
	return &ticket, nil
}

func (m *MongoDB) findTicketByCode(ctx context.Context, connection *mongo.Client, code string) (*entity.Ticket, error) {
	var ticket entity.Ticket
	err := m.tickets(connection).FindOne(ctx, bson.D{{Key: "code", Value: code}}).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find by code: %w", err)
	}
	return &ticket, nil
}

// ClaimOneUnused atomically flips one unused ticket to the transient claimed
// marker and returns it. Two concurrent callers can never receive the same
// ticket: the findOneAndUpdate filter and update are a single operation.
// Returns nil when no unused ticket exists.
func (m *MongoDB) ClaimOneUnused(ctx context.Context) (*entity.Ticket, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "status", Value: entity.StateUnused}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: entity.StateClaimed}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket entity.Ticket
	err = m.tickets(connection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb claim ticket: %w", err)
	}
	return &ticket, nil
}

// transitionTicket is the only legal mutation path for a ticket's lifecycle
// state. It succeeds only if the record still holds `from` at write time;
// when the swap misses it distinguishes a state conflict from a missing code.
func (m *MongoDB) transitionTicket(ctx context.Context, code string, from entity.TicketState, update bson.D) (*entity.Ticket, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "code", Value: code}, {Key: "status", Value: from}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ticket entity.Ticket
	err = m.tickets(connection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, findErr := m.findTicketByCode(ctx, connection, code); findErr != nil {
			return nil, findErr
		}
		return nil, entity.ErrStateConflict
	}
	if mongo.IsDuplicateKeyError(err) {
		return nil, entity.ErrDuplicateKey
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb transition ticket: %w", err)
	}
	return &ticket, nil
}

// CommitAssignment moves a claimed ticket to sent with the assignment fields.
func (m *MongoDB) CommitAssignment(ctx context.Context, code, email, actor string, at time.Time) (*entity.Ticket, error) {
	return m.transitionTicket(ctx, code, entity.StateClaimed, bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.StateSent},
		{Key: "email", Value: email},
		{Key: "issued_by", Value: actor},
		{Key: "issued_at", Value: at},
	}}})
}

// RevertClaim returns a claimed ticket to the pool. Used when the commit
// lost its race or the allocation aborted before dispatch.
func (m *MongoDB) RevertClaim(ctx context.Context, code string) (*entity.Ticket, error) {
	return m.transitionTicket(ctx, code, entity.StateClaimed, bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.StateUnused},
	}}})
}

// RevertAssignment is the compensation transition: sent back to unused with
// every assignment field cleared, making the ticket claimable again.
func (m *MongoDB) RevertAssignment(ctx context.Context, code string) (*entity.Ticket, error) {
	return m.transitionTicket(ctx, code, entity.StateSent, bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: entity.StateUnused}}},
		{Key: "$unset", Value: bson.D{{Key: "email", Value: ""}, {Key: "issued_by", Value: ""}, {Key: "issued_at", Value: ""}}},
	})
}

// CommitRedemption performs the one-way sent -> used transition.
func (m *MongoDB) CommitRedemption(ctx context.Context, code, actor string, at time.Time) (*entity.Ticket, error) {
	return m.transitionTicket(ctx, code, entity.StateSent, bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.StateUsed},
		{Key: "used_by", Value: actor},
		{Key: "used_at", Value: at},
	}}})
}

// ListTickets returns one page of tickets, newest first, optionally filtered
// by state.
func (m *MongoDB) ListTickets(ctx context.Context, state entity.TicketState, page, limit int64) (*entity.TicketPage, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{}
	if state != "" {
		filter = bson.D{{Key: "status", Value: state}}
	}

	total, err := m.tickets(connection).CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb count tickets: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
	cursor, err := m.tickets(connection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []*entity.Ticket
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("mongodb list tickets: %w", err)
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return &entity.TicketPage{
		Tickets:    tickets,
		Page:       page,
		TotalPages: totalPages,
		TotalItems: total,
		PerPage:    limit,
	}, nil
}

// SearchTicketsByEmail matches assigned tickets by case-insensitive email
// substring, most recently issued first.
func (m *MongoDB) SearchTicketsByEmail(ctx context.Context, email string) ([]*entity.Ticket, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "email", Value: primitive.Regex{Pattern: email, Options: "i"}}}
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: -1}})
	cursor, err := m.tickets(connection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb search tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []*entity.Ticket
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("mongodb search tickets: %w", err)
	}
	return tickets, nil
}

func (m *MongoDB) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	return m.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (m *MongoDB) GetUserByUsername(ctx context.Context, username string) (*entity.User, error) {
	return m.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

func (m *MongoDB) findUser(ctx context.Context, filter bson.D) (*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	var user entity.User
	err = m.users(connection).FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find user: %w", err)
	}
	return &user, nil
}

func (m *MongoDB) InsertUser(ctx context.Context, user *entity.User) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.users(connection).InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("mongodb insert user: %w", err)
	}
	return nil
}

func (m *MongoDB) CountUsers(ctx context.Context) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	count, err := m.users(connection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongodb count users: %w", err)
	}
	return count, nil
}

func (m *MongoDB) ListActiveUsers(ctx context.Context) ([]*entity.User, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.users(connection).Find(ctx, bson.D{{Key: "active", Value: true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	if err = cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongodb list users: %w", err)
	}
	return users, nil
}

// DeactivateUser soft-deletes an account; records it created stay attributed.
func (m *MongoDB) DeactivateUser(ctx context.Context, id string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	result, err := m.users(connection).UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}},
	)
	if err != nil {
		return fmt.Errorf("mongodb deactivate user: %w", err)
	}
	if result.MatchedCount == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}

func (m *MongoDB) InsertActivity(ctx context.Context, activity *entity.Activity) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	_, err = m.activity(connection).InsertOne(ctx, activity)
	if err != nil {
		return fmt.Errorf("mongodb insert activity: %w", err)
	}
	return nil
}

func (m *MongoDB) ListActivity(ctx context.Context, filter entity.ActivityFilter) (*entity.ActivityPage, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	query := bson.D{}
	if filter.Actor != "" {
		query = append(query, bson.E{Key: "actor", Value: filter.Actor})
	}
	if filter.Action != "" {
		query = append(query, bson.E{Key: "action", Value: filter.Action})
	}
	timeRange := bson.D{}
	if !filter.From.IsZero() {
		timeRange = append(timeRange, bson.E{Key: "$gte", Value: filter.From})
	}
	if !filter.To.IsZero() {
		timeRange = append(timeRange, bson.E{Key: "$lte", Value: filter.To})
	}
	if len(timeRange) > 0 {
		query = append(query, bson.E{Key: "timestamp", Value: timeRange})
	}

	total, err := m.activity(connection).CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("mongodb count activity: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip((filter.Page - 1) * filter.Limit).
		SetLimit(filter.Limit)
	cursor, err := m.activity(connection).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb list activity: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*entity.Activity
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongodb list activity: %w", err)
	}

	totalPages := total / filter.Limit
	if total%filter.Limit != 0 {
		totalPages++
	}
	return &entity.ActivityPage{
		Entries:    entries,
		Page:       filter.Page,
		TotalPages: totalPages,
		TotalItems: total,
		PerPage:    filter.Limit,
	}, nil
}
