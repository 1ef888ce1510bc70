package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/canpai/canpai/pkg/model"
)

const staffTestColumns = 15

func staffRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "biz_id", "name", "code", "status", "skills", "weekly_availability", "time_off",
		"max_weekly_hours", "max_consecutive_days", "hourly_rate", "reliability_score",
		"recent_weekly_hours", "created_at", "updated_at",
	})
}

func TestStaffRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	staff := &model.Staff{
		BizID:  uuid.New(),
		Name:   "张三",
		Code:   "E001",
		Status: "active",
		Skills: []string{"cooking"},
	}

	mock.ExpectExec("INSERT INTO staff").
		WithArgs(
			sqlmock.AnyArg(), staff.BizID, staff.Name, staff.Code, staff.Status,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			staff.MaxWeeklyHours, staff.MaxConsecutiveDays, staff.HourlyRate, staff.ReliabilityScore,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewStaffRepository(db).Create(context.Background(), staff)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, staff.ID, "创建时应生成 ID")
	assert.False(t, staff.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	bizID := uuid.New()
	now := time.Now()

	avail := []byte(`{"1":[{"start":"09:00","end":"18:00"}]}`)
	timeOff := []byte(`[{"start_date":"2025-06-02","end_date":"2025-06-02","status":"approved"}]`)
	hours := []byte(`{"2025-06-02":16}`)

	mock.ExpectQuery("SELECT (.+) FROM staff WHERE id =").
		WithArgs(id).
		WillReturnRows(staffRows().AddRow(
			id, bizID, "张三", "E001", "active", "{cooking,service}", avail, timeOff,
			38.0, 5, 28.5, 0.9, hours, now, now,
		))

	staff, err := NewStaffRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, staff)

	assert.Equal(t, "张三", staff.Name)
	assert.Equal(t, []string{"cooking", "service"}, staff.Skills)
	assert.Equal(t, 38.0, staff.MaxWeeklyHours)
	assert.Len(t, staff.WeeklyAvailability[time.Monday], 1, "JSON 可用时间应反序列化")
	assert.Len(t, staff.TimeOff, 1)
	assert.Equal(t, 16.0, staff.RecentWeeklyHours["2025-06-02"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM staff WHERE id =").
		WithArgs(id).
		WillReturnRows(staffRows())

	staff, err := NewStaffRepository(db).GetByID(context.Background(), id)
	require.NoError(t, err, "未命中应返回 nil 而非错误")
	assert.Nil(t, staff)
}

func TestStaffRepository_Update_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE staff SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewStaffRepository(db).Update(context.Background(), &model.Staff{
		BaseModel: model.NewBaseModel(),
		Name:      "张三",
	})
	assert.Error(t, err, "零行受影响应视为员工不存在")
}

func TestStaffRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE staff SET deleted_at").
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewStaffRepository(db).Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepository_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	bizID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM staff").
		WithArgs(bizID, "active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	mock.ExpectQuery("SELECT (.+) FROM staff").
		WithArgs(bizID, "active", 20, 0).
		WillReturnRows(staffRows().
			AddRow(uuid.New(), bizID, "张三", "E001", "active", "{cooking}", []byte(`{}`), []byte(`[]`), 40.0, 6, 25.0, 0.8, []byte(`{}`), now, now).
			AddRow(uuid.New(), bizID, "李四", "E002", "active", "{service}", []byte(`{}`), []byte(`[]`), 40.0, 6, 22.0, 0.7, []byte(`{}`), now, now))

	filter := DefaultListFilter().WithBizID(bizID).WithStatus("active")
	staff, total, err := NewStaffRepository(db).List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, staff, 2)
	assert.Equal(t, "张三", staff[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaffRepository_AddWeeklyHours(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE staff SET").
		WithArgs(id, "2025-06-02", 8.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewStaffRepository(db).AddWeeklyHours(context.Background(), db, id, "2025-06-02", 8.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
