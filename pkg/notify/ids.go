// 文件: pkg/notify/ids.go
// 事件 ID 生成器
// 使用开源库: github.com/bwmarrin/snowflake

package notify

import (
	"github.com/bwmarrin/snowflake"
)

// IDGenerator 雪花算法 ID 生成器, 并发安全
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator nodeID: 节点ID (0-1023), 多个轮询实例必须不同
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// Next 生成下一个 ID
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
