package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/vpn_go_server/internal/model"
)

// ErrNoAvailableNode 所有节点已满或停用
var ErrNoAvailableNode = errors.New("没有可用节点")

type NodeRepository struct {
	db *gorm.DB
}

func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

func (r *NodeRepository) Create(node *model.Node) error {
	return r.db.Create(node).Error
}

func (r *NodeRepository) GetByID(id int64) (*model.Node, error) {
	var node model.Node
	err := r.db.Where("id = ?", id).First(&node).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *NodeRepository) List() ([]*model.Node, error) {
	var nodes []*model.Node
	err := r.db.Order("id ASC").Find(&nodes).Error
	return nodes, err
}

func (r *NodeRepository) Update(node *model.Node) error {
	return r.db.Save(node).Error
}

func (r *NodeRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.Node{}).Where("id = ?", id).Updates(fields).Error
}

// PickAvailable 选出负载最低的可用节点，负载相同时取 ID 较小者
func (r *NodeRepository) PickAvailable() (*model.Node, error) {
	var node model.Node
	err := r.db.Where("is_active = ? AND load < max_capacity", true).
		Order("load ASC, id ASC").First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoAvailableNode
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// IncrementLoadTx 在事务内递增节点负载，与设备行写入同事务提交
func (r *NodeRepository) IncrementLoadTx(tx *gorm.DB, id int64) error {
	return tx.Model(&model.Node{}).Where("id = ?", id).
		Update("load", gorm.Expr("load + 1")).Error
}

// DecrementLoadTx 在事务内递减节点负载，带下界保护，不会降到负数
func (r *NodeRepository) DecrementLoadTx(tx *gorm.DB, id int64) error {
	return tx.Model(&model.Node{}).Where("id = ? AND load > 0", id).
		Update("load", gorm.Expr("load - 1")).Error
}

// IncrementLoad 非事务版本
func (r *NodeRepository) IncrementLoad(id int64) error {
	return r.IncrementLoadTx(r.db, id)
}

// DecrementLoad 非事务版本
func (r *NodeRepository) DecrementLoad(id int64) error {
	return r.DecrementLoadTx(r.db, id)
}
