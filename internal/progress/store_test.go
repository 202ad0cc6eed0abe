package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type mockRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *mockRows) Close()                                       {}
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	execSQL  string
	execArgs []any
	execErr  error
	rows     *mockRows
	queryErr error
}

func (m *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execSQL = sql
	m.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), m.execErr
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return m.rows, nil
}

func TestPostgresStore_Append(t *testing.T) {
	db := &mockDB{}
	store := NewPostgresStore(db)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Append(context.Background(), Record{UserID: "u1", TotalQuestions: 5, CorrectAnswers: 3, Timestamp: ts}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if !strings.Contains(db.execSQL, "INSERT INTO user_progress") {
		t.Errorf("sql = %q", db.execSQL)
	}
	if len(db.execArgs) != 4 || db.execArgs[0] != "u1" || db.execArgs[1] != 5 || db.execArgs[2] != 3 || db.execArgs[3] != ts {
		t.Errorf("args = %v", db.execArgs)
	}

	db.execErr = errors.New("connection reset")
	if err := store.Append(context.Background(), Record{UserID: "u1"}); err == nil {
		t.Error("Append() should surface exec errors")
	}
}

func TestPostgresStore_ListByUser(t *testing.T) {
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := &mockDB{rows: &mockRows{data: [][]any{
		{"u1", 5, 2, ts},
		{"u1", 5, 5, ts.Add(time.Hour)},
	}}}

	got, err := NewPostgresStore(db).ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 2 || got[1].CorrectAnswers != 5 || !got[0].Timestamp.Equal(ts) {
		t.Errorf("ListByUser() = %+v", got)
	}

	failing := &mockDB{queryErr: errors.New("timeout")}
	if _, err := NewPostgresStore(failing).ListByUser(context.Background(), "u1"); err == nil {
		t.Error("ListByUser() should surface query errors")
	}

	iterErr := &mockDB{rows: &mockRows{err: errors.New("broken pipe")}}
	if _, err := NewPostgresStore(iterErr).ListByUser(context.Background(), "u1"); err == nil {
		t.Error("ListByUser() should surface iteration errors")
	}
}

type fakeDynamo struct {
	put    *dynamodb.PutItemInput
	putErr error
	pages  []*dynamodb.QueryOutput
	calls  int
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.calls > 0 && len(in.ExclusiveStartKey) == 0 {
		return nil, errors.New("pagination key not forwarded")
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func item(user, ts string, total, correct int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"userId":         &types.AttributeValueMemberS{Value: user},
		"timestamp":      &types.AttributeValueMemberS{Value: ts},
		"totalQuestions": &types.AttributeValueMemberN{Value: fmt.Sprint(total)},
		"correctAnswers": &types.AttributeValueMemberN{Value: fmt.Sprint(correct)},
	}
}

func TestDynamoStore_Append(t *testing.T) {
	fake := &fakeDynamo{}
	store := NewDynamoStoreWithClient(fake, "")
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := store.Append(context.Background(), Record{UserID: "u1", TotalQuestions: 5, CorrectAnswers: 3, Timestamp: ts}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if aws.ToString(fake.put.TableName) != "BuzzleUserProgress" {
		t.Errorf("table = %q", aws.ToString(fake.put.TableName))
	}
	user, ok := fake.put.Item["userId"].(*types.AttributeValueMemberS)
	if !ok || user.Value != "u1" {
		t.Errorf("userId attribute = %#v", fake.put.Item["userId"])
	}
	stamp, ok := fake.put.Item["timestamp"].(*types.AttributeValueMemberS)
	if !ok || stamp.Value != "2026-03-01T10:00:00Z" {
		t.Errorf("timestamp attribute = %#v", fake.put.Item["timestamp"])
	}
	total, ok := fake.put.Item["totalQuestions"].(*types.AttributeValueMemberN)
	if !ok || total.Value != "5" {
		t.Errorf("totalQuestions attribute = %#v", fake.put.Item["totalQuestions"])
	}

	fake.putErr = errors.New("throttled")
	if err := store.Append(context.Background(), Record{UserID: "u1"}); err == nil {
		t.Error("Append() should surface put errors")
	}
}

func TestDynamoStore_ListByUserPaginates(t *testing.T) {
	fake := &fakeDynamo{pages: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{item("u1", "2026-03-01T10:00:00Z", 5, 1)},
			LastEvaluatedKey: item("u1", "2026-03-01T10:00:00Z", 5, 1),
		},
		{
			Items: []map[string]types.AttributeValue{item("u1", "2026-03-02T10:00:00Z", 5, 4)},
		},
	}}

	got, err := NewDynamoStoreWithClient(fake, "custom").ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(got) != 2 || got[0].CorrectAnswers != 1 || got[1].CorrectAnswers != 4 {
		t.Errorf("ListByUser() = %+v", got)
	}
	if got[1].Timestamp.Day() != 2 {
		t.Errorf("timestamp = %v", got[1].Timestamp)
	}
}
