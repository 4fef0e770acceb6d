package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 避免循环依赖：领域层不依赖基础设施层
//
// 使用场景：
//   - 兴趣计数、商品关系、推荐结果的持久化
//   - 热门列表缓存、任务游标
//
// 实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
//   - store.BadgerStore 实现此接口
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位为秒
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key（包括同名的 Hash / 有序集合）
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取（减少网络往返）
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// ScoredMember 是有序集合中的一个成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// KeyValueStore 是 Store 的扩展接口，支持更丰富的 KV 操作。
//
// 扩展功能：
//   - 有序集合（SortedSet）：兴趣排名、关系强度排名、推荐结果、热门列表
//   - 哈希表（Hash）：兴趣计数、关系属性、推荐理由
//   - Atomic：一组写操作要么全部生效要么全部不生效
//
// 有序集合按分数降序返回；分数相同时按 member 降序（与 Redis ZREVRANGE 一致）。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合添加成员
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange 按分数降序获取有序集合成员，start/stop 为闭区间下标，stop < 0 表示到末尾
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeWithScores 同 ZRange，但同时返回分数
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)

	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key string, member string) (float64, error)

	// ZCard 返回有序集合的成员数
	ZCard(ctx context.Context, key string) (int64, error)

	// HGet 读取 Hash 字段
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet 写入 Hash 字段
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGetAll 读取整个 Hash；key 不存在时返回空 map
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)

	// HIncrBy 原子递增 Hash 中的整数字段，返回递增后的值
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// Atomic 在一个原子批次中执行 fn 排队的写操作。
	// fn 返回错误时不提交任何写入。
	Atomic(ctx context.Context, fn func(tx KeyValueTx) error) error
}

// KeyValueTx 是 Atomic 批次中可排队的写操作。
// 所有操作都在服务端计算（递增不依赖客户端读到的旧值），提交前不可见。
type KeyValueTx interface {
	Set(key string, value []byte, ttl ...int)
	Delete(key string)
	Expire(key string, ttl int)
	HSet(key, field string, value []byte)
	HSetNX(key, field string, value []byte)
	HIncrBy(key, field string, delta int64)
	ZAdd(key string, score float64, member string)
	ZIncrBy(key string, delta float64, member string)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}

// IsStoreNotSupported 检查错误是否为操作不支持
func IsStoreNotSupported(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotSupported
	}
	return false
}
