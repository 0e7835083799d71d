package model

// DatabaseSchema 描述可供查询的业务库结构，用于构建系统提示。
type DatabaseSchema struct {
	Tables      []TableDescription
	ForeignKeys []ForeignKey
}

// TableDescription 一张表及其列。
type TableDescription struct {
	Name        string
	Description string
	Columns     []ColumnInfo
}

// ColumnInfo 一列的名称、类型与注释。
type ColumnInfo struct {
	Name        string
	DataType    string
	Nullable    bool
	Description string
}

// ForeignKey 一条外键关系。
type ForeignKey struct {
	Table            string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}
