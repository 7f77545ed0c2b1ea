package utils

import (
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/mozillazg/go-pinyin"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName(rng *rand.Rand) string {
	surname := commonSurnames[rng.Intn(len(commonSurnames))]
	nameLength := rng.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rng.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// ResourceCode 把显示名转换为只包含小写字母、数字和连字符的资源编码，
// 汉字按拼音转写，例如 "张伟" -> "zhangwei"、"Mary Ann" -> "mary-ann"
func ResourceCode(name string) string {
	var b strings.Builder
	pendingDash := false

	for _, r := range name {
		switch {
		case unicode.Is(unicode.Han, r):
			for _, py := range pinyin.LazyConvert(string(r), nil) {
				if pendingDash && b.Len() > 0 {
					b.WriteByte('-')
				}
				pendingDash = false
				b.WriteString(py)
			}
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(unicode.ToLower(r))
		case r == ' ' || r == '-' || r == '_':
			pendingDash = true
		}
	}

	return b.String()
}

var digits = "0123456789"

// GenerateRandomResource 生成一个可预约的外勤评估师，编码在拼音后追加随机数字避免重复
func GenerateRandomResource(rng *rand.Rand, emailDomainName string, territoryIDs []int64) *domain.Resource {
	fullName := GenerateRandomChineseName(rng)
	code := ResourceCode(fullName)

	digitsLength := rng.Intn(3) + 2
	for i := 0; i < digitsLength; i++ {
		code += string(digits[rng.Intn(len(digits))])
	}

	res := &domain.Resource{
		Code:                  code,
		Name:                  fullName,
		Email:                 code + "@" + emailDomainName,
		Kind:                  domain.ResourceKindPerson,
		Employment:            domain.EmploymentEmployee,
		IsBookable:            true,
		MaxAppointmentsPerDay: int32(rng.Intn(4) + 3),
		MaxHoursPerWeek:       int32(rng.Intn(3)*5 + 30),
	}
	if rng.Intn(4) == 0 {
		res.Employment = domain.EmploymentContractor
		res.MaxHoursPerWeek = 0
	}

	if len(territoryIDs) > 0 {
		res.TerritoryIDs = GenerateRandomSubset(rng, territoryIDs)
		primary := res.TerritoryIDs[0]
		res.PrimaryTerritoryID = &primary
	}

	return res
}

// 使用 Fisher-Yates 洗牌算法来生成一个非空随机子集
func GenerateRandomSubset[T any](rng *rand.Rand, arr []T) []T {
	arrCopy := append([]T{}, arr...) // 复制数组，避免修改原数组

	for i := 0; i < len(arrCopy)-1; i++ {
		j := rng.Intn(len(arrCopy)-i) + i
		arrCopy[i], arrCopy[j] = arrCopy[j], arrCopy[i]
	}

	l := rng.Intn(len(arrCopy)) + 1
	return arrCopy[:l]
}

// GenerateRandomVisitWindow 在 day 所在日期的工作时间内生成一个现场评估时段，
// 开始时间按半小时对齐，时长 1 到 3 小时
func GenerateRandomVisitWindow(rng *rand.Rand, day time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := day.In(loc).Date()
	slot := rng.Intn(14) // 08:00 ~ 14:30
	start := time.Date(y, m, d, 8, 0, 0, 0, loc).Add(time.Duration(slot) * 30 * time.Minute)
	end := start.Add(time.Duration(rng.Intn(3)+1) * time.Hour)
	return start, end
}
