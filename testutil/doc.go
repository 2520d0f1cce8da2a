/*
Package testutil 提供测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue，支持超时轮询等待条件满足
  - 错误断言: AssertNoError

# 使用示例

	ctx := testutil.TestContext(t)
	got := runUnderTest(ctx)
	testutil.AssertNoError(t, got.Err)
*/
package testutil
