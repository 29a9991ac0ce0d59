package masker

import (
	"fmt"
	"math/rand"
)

// Pseudonym pools. Names are common Japanese ones, email domains come
// from the reserved example.* set, and addresses point at well-known
// business districts, so masked text reads naturally without naming a
// real entity.
var (
	surnames = []string{
		"佐藤", "鈴木", "高橋", "田中", "伊藤", "渡辺", "山本", "中村",
		"小林", "加藤", "吉田", "山田", "松本", "井上", "木村",
	}
	givenNames = []string{
		"大輔", "健太", "翔太", "直樹", "太郎", "花子", "美咲", "陽子",
		"恵子", "智子", "拓也", "真一", "裕子", "和也", "明美",
	}
	companyStems = []string{
		"大和", "富士", "北斗", "八雲", "青葉", "若葉", "旭", "光陽",
		"高砂", "千歳", "曙", "平和",
	}
	companyFields = []string{
		"商事", "工業", "物産", "電機", "建設", "通信", "運輸", "食品",
		"製作所", "システム", "技研", "興業",
	}
	romajiGiven = []string{
		"daisuke", "kenta", "shota", "naoki", "taro", "hanako",
		"misaki", "yoko", "keiko", "tomoko",
	}
	romajiSurnames = []string{
		"sato", "suzuki", "takahashi", "tanaka", "ito", "watanabe",
		"yamamoto", "nakamura", "kobayashi", "kato",
	}
	emailDomains = []string{"example.com", "example.net", "example.org", "example.jp"}
	phoneCodes   = []string{"03", "06", "052", "011", "092", "090", "080", "070"}

	addressPool = []string{
		"東京都港区海岸1-2-3",
		"東京都新宿区西新宿2-8-1",
		"大阪府大阪市北区梅田3-3-3",
		"京都府京都市中京区烏丸通4-5",
		"北海道札幌市中央区大通西5-6",
		"愛知県名古屋市中村区名駅1-1-4",
		"福岡県福岡市博多区博多駅前2-3-4",
		"宮城県仙台市青葉区中央3-2-1",
		"広島県広島市中区基町5-4-3",
		"神奈川県横浜市西区みなとみらい2-2-1",
	}
)

// faker draws pseudonyms from the pools with a seeded RNG. Every value
// handed out is remembered so repeated draws stay distinct; addresses
// cycle through the fixed pool instead of being generated.
type faker struct {
	rng     *rand.Rand
	used    map[string]struct{}
	addrIdx int
}

func newFaker(seed int64) *faker {
	return &faker{
		rng:  rand.New(rand.NewSource(seed)),
		used: make(map[string]struct{}),
	}
}

// generate returns a pseudonym for the category. Uniqueness is
// best-effort: once a pool is exhausted duplicates are accepted.
func (f *faker) generate(cat Category) string {
	for attempt := 0; ; attempt++ {
		var candidate string
		switch cat {
		case CategoryCompany:
			candidate = f.company()
		case CategoryEmail:
			candidate = f.email()
		case CategoryPhone:
			candidate = f.phone()
		case CategoryAddress:
			candidate = f.address()
		default: // CategoryPerson
			candidate = f.person()
		}
		if _, taken := f.used[candidate]; taken && attempt < 32 {
			continue
		}
		f.used[candidate] = struct{}{}
		return candidate
	}
}

func (f *faker) company() string {
	name := f.pick(companyStems) + f.pick(companyFields)
	if f.rng.Intn(2) == 0 {
		return "株式会社" + name
	}
	return name + "株式会社"
}

func (f *faker) person() string {
	return f.pick(surnames) + " " + f.pick(givenNames)
}

func (f *faker) email() string {
	return f.pick(romajiGiven) + "." + f.pick(romajiSurnames) + "@" + f.pick(emailDomains)
}

func (f *faker) phone() string {
	return fmt.Sprintf("%s-%04d-%04d", f.pick(phoneCodes), f.rng.Intn(10000), f.rng.Intn(10000))
}

func (f *faker) address() string {
	addr := addressPool[f.addrIdx%len(addressPool)]
	f.addrIdx++
	return addr
}

func (f *faker) pick(pool []string) string {
	return pool[f.rng.Intn(len(pool))]
}
