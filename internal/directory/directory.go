package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cginside/hobi/pkg/database"
	"github.com/cginside/hobi/pkg/logging"
)

// dayNames maps Go weekdays onto the single-character Korean day labels used
// in the cafeteria menu JSON.
var dayNames = map[time.Weekday]string{
	time.Monday:    "월",
	time.Tuesday:   "화",
	time.Wednesday: "수",
	time.Thursday:  "목",
	time.Friday:    "금",
	time.Saturday:  "토",
	time.Sunday:    "일",
}

// profileFilterKeys fixes the order filters appear in answers and SQL.
var profileFilterKeys = []string{"position", "department", "username", "field"}

type profile struct {
	Username   string
	Department string
	Position   string
	Field      string
}

type dayMenu struct {
	Lunch   []string `json:"lunch"`
	Special string   `json:"special"`
}

// Directory answers structured questions against the employee profile and
// cafeteria menu tables, turning classifier-extracted filters into SQL and
// rows into Korean answer text.
type Directory struct {
	db     database.PostgresConn
	logger logging.Logger
	now    func() time.Time
}

func New(db database.PostgresConn, logger logging.Logger) *Directory {
	return &Directory{db: db, logger: logger, now: time.Now}
}

// Query dispatches on table name. An unrecognized table is answered in
// Korean rather than failing, so the model can relay it.
func (d *Directory) Query(ctx context.Context, table string, filters map[string]string) (string, error) {
	switch table {
	case "profiles":
		return d.queryProfiles(ctx, filters)
	case "cafeteria_menus":
		return d.queryMenu(ctx, filters)
	default:
		return "조회할 수 있는 테이블이 아닙니다.", nil
	}
}

func (d *Directory) queryProfiles(ctx context.Context, filters map[string]string) (string, error) {
	query := "SELECT username, department, position, field FROM profiles WHERE is_npc = FALSE"
	var args []any
	for _, key := range profileFilterKeys {
		if v := filters[key]; v != "" {
			args = append(args, "%"+v+"%")
			query += fmt.Sprintf(" AND %s ILIKE $%d", key, len(args))
		}
	}
	query += " ORDER BY username"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var profiles []profile
	for rows.Next() {
		var p profile
		var dept, pos, field sql.NullString
		if err := rows.Scan(&p.Username, &dept, &pos, &field); err != nil {
			return "", err
		}
		p.Department, p.Position, p.Field = dept.String, pos.String, field.String
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	if len(args) == 0 {
		return fmt.Sprintf("현재 CG Inside에는 총 %d명의 직원이 있습니다.", len(profiles)), nil
	}

	if len(profiles) == 0 {
		var conds []string
		for _, key := range profileFilterKeys {
			if v := filters[key]; v != "" {
				conds = append(conds, fmt.Sprintf("%s='%s'", key, v))
			}
		}
		return fmt.Sprintf("조건(%s)에 해당하는 직원이 없습니다.", strings.Join(conds, ", ")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "검색 결과 (%d명):", len(profiles))
	for _, p := range profiles {
		name := p.Username
		if name == "" {
			name = "이름 없음"
		}
		b.WriteString("\n- " + name)
		if p.Position != "" {
			fmt.Fprintf(&b, " (%s)", p.Position)
		}
		if p.Department != "" {
			fmt.Fprintf(&b, " - %s", p.Department)
		}
		if p.Field != "" {
			fmt.Fprintf(&b, " [%s]", p.Field)
		}
	}
	return b.String(), nil
}

func (d *Directory) queryMenu(ctx context.Context, filters map[string]string) (string, error) {
	row := d.db.QueryRowContext(ctx,
		"SELECT menus, week_title, period FROM cafeteria_menus ORDER BY scraped_at DESC LIMIT 1")

	var menusRaw []byte
	var weekTitle, period sql.NullString
	if err := row.Scan(&menusRaw, &weekTitle, &period); err != nil {
		if err == sql.ErrNoRows {
			return "아직 등록된 식단 정보가 없습니다.", nil
		}
		d.logger.WithError(err).Warn("식단 조회 실패")
		return "식단 정보 시스템이 아직 설정되지 않았습니다.", nil
	}

	menus := map[string]dayMenu{}
	if len(menusRaw) > 0 {
		if err := json.Unmarshal(menusRaw, &menus); err != nil {
			return "", fmt.Errorf("failed to decode menus: %w", err)
		}
	}

	target, label := d.resolveDay(filters["day"])

	menu, ok := menus[target]
	if !ok || len(menu.Lunch) == 0 && menu.Special == "" {
		var b strings.Builder
		fmt.Fprintf(&b, "%s(%s요일)은 식단 정보가 없습니다.\n\n", label, target)
		fmt.Fprintf(&b, "이번 주 식단 (%s):\n", period.String)
		for _, day := range []string{"월", "화", "수", "목", "금"} {
			items := menus[day].Lunch
			line := "정보 없음"
			if len(items) > 0 {
				line = strings.Join(items, ", ")
			}
			fmt.Fprintf(&b, "\n%s요일: %s", day, line)
		}
		return b.String(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s(%s요일) 점심 메뉴입니다:\n", label, target)
	for _, item := range menu.Lunch {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	if menu.Special != "" {
		fmt.Fprintf(&b, "\n특별 메뉴: %s", menu.Special)
	}
	return b.String(), nil
}

// resolveDay turns a day filter (월~일, 내일, 모레, or empty) into the target
// day label plus the phrase used in the answer.
func (d *Directory) resolveDay(day string) (target, label string) {
	now := d.now()
	switch dp := strings.TrimSpace(day); dp {
	case "내일":
		return dayNames[now.AddDate(0, 0, 1).Weekday()], "내일"
	case "모레":
		return dayNames[now.AddDate(0, 0, 2).Weekday()], "모레"
	case "월", "화", "수", "목", "금", "토", "일":
		return dp, dp + "요일"
	default:
		return dayNames[now.Weekday()], "오늘"
	}
}
