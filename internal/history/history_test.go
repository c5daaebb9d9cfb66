package history

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestRecentReturnsChronologicalOrder(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"role", "content"}).
		AddRow("assistant", "세 번째").
		AddRow("user", "두 번째").
		AddRow("user", "첫 번째")
	mock.ExpectQuery("SELECT role, content").
		WithArgs("conv-1", 20).
		WillReturnRows(rows)

	store := NewStore(db)
	turns, err := store.Recent(context.Background(), "conv-1", 20)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "첫 번째" || turns[2].Content != "세 번째" {
		t.Fatalf("history must be chronological: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendAndClear(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO hobi_chat_messages").
		WithArgs("conv-1", "user", "질문입니다").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM hobi_chat_messages").
		WithArgs("conv-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	store := NewStore(db)
	if err := store.Append(context.Background(), "conv-1", "user", "질문입니다"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Clear(context.Background(), "conv-1"); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
