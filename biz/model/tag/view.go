package tag

// TagView 对外展示用的标签记录，分页列表和层级树共用
type TagView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Desc       string     `json:"desc"`
	Operator   string     `json:"operator"`
	CreateTime int64      `json:"createTime"`
	UpdateTime int64      `json:"updateTime"`
	Source     string     `json:"source"`
	ParentName *string    `json:"parentName"`
	Children   []*TagView `json:"children"`
}

// TagPage 分页查询结果
type TagPage struct {
	List  []*TagView `json:"list"`
	Total int64      `json:"total"`
}

// ToView 把标签映射为展示记录，children 初始化为空切片
func ToView(t *Tag) *TagView {
	if t == nil {
		return nil
	}
	return &TagView{
		ID:         t.ID,
		Name:       t.Name,
		Desc:       t.Desc,
		Operator:   t.Operator,
		CreateTime: t.CreateTime,
		UpdateTime: t.UpdateTime,
		Source:     t.Source.String(),
		Children:   []*TagView{},
	}
}

// ToPageView 在 ToView 基础上补充父标签名称
func ToPageView(row TagWithParent) *TagView {
	v := ToView(row.Tag)
	if v != nil && row.Parent != nil {
		name := row.Parent.Name
		v.ParentName = &name
	}
	return v
}
