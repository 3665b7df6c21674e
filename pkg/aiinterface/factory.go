package aiinterface

// ClientFactory 根据配置创建模型客户端
// 诊断探针与弹性客户端都通过它拿到后端，便于测试时替换
type ClientFactory func(config *ClientConfig) (ModelClient, error)
